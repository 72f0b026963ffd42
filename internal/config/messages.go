package config

import (
	"fmt"
	"os"
	"text/template"

	"github.com/reconquest/pkg/log"
	"github.com/seletskiy/tplutil"
)

var templateNotConfigured = template.Must(template.New("").Parse(`
{{ .Program }} needs to know which GitLab instance to talk to and how to
authenticate. Missing parameters:

{{ if not .Domain -}}
{{" "}}- GitLab domain, for example gitlab.com
{{ end -}}
{{- if not .HasToken -}}
{{" "}}- Personal access token with the read_api scope
{{ end }}
Pass them as flags:

 {{ .Program }} --domain {{ with .Domain }}{{ . }}{{ else }}gitlab.com{{ end }} --token-file <path-to-token> ...

or export them:

 GITLAB_DOMAIN={{ with .Domain }}{{ . }}{{ else }}gitlab.com{{ end }} \
 GITLAB_TOKEN_PATH=<path-to-token> \
    {{ .Program }} ...

or put them into {{ .Path }}:

 domain: {{ with .Domain }}{{ . }}{{ else }}gitlab.com{{ end }}
 token_path: <path-to-token>
`))

func ShowMessageNotConfigured(program string, path string, config Config) {
	message, err := tplutil.ExecuteToString(templateNotConfigured, map[string]interface{}{
		"Program":  program,
		"Path":     path,
		"Domain":   config.Domain,
		"HasToken": config.Token != "" || config.TokenPath != "",
	})
	if err != nil {
		log.Errorf(err, "unable to show templated message")

		fmt.Fprintf(os.Stderr, "GITLAB_DOMAIN or GITLAB_TOKEN_PATH is not specified\n")
		return
	}

	fmt.Fprintln(os.Stderr, message)
}
