package gitlab

import (
	"net/http"
	"sort"
	"strings"

	"github.com/reconquest/gitlab-ci-stats/internal/masker"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
)

// TracingTransport logs every request and response status at trace level.
// Header values are passed through the masker so the token never reaches
// the log.
type TracingTransport struct {
	next   http.RoundTripper
	masker masker.Masker
}

func NewTracingTransport(next http.RoundTripper, secrets ...string) *TracingTransport {
	if next == nil {
		next = http.DefaultTransport
	}

	return &TracingTransport{
		next:   next,
		masker: masker.New(secrets...),
	}
}

func (transport *TracingTransport) RoundTrip(
	request *http.Request,
) (*http.Response, error) {
	context := karma.Describe("method", request.Method).
		Describe("url", transport.masker.Mask(request.URL.String()))

	log.Tracef(transport.describeHeaders(context, request.Header), "sending http request")

	response, err := transport.next.RoundTrip(request)
	if err != nil {
		log.Tracef(context.Describe("error", err.Error()), "http request failed")
		return nil, err
	}

	log.Tracef(
		context.Describe("status_code", response.StatusCode),
		"received http response",
	)

	return response, nil
}

func (transport *TracingTransport) describeHeaders(
	context *karma.Context,
	headers http.Header,
) *karma.Context {
	for _, header := range transport.maskHeaders(headers) {
		context = context.Describe("header "+header[0], header[1])
	}

	return context
}

// maskHeaders returns name/value pairs sorted by name.
func (transport *TracingTransport) maskHeaders(headers http.Header) [][2]string {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	result := make([][2]string, len(keys))
	for i, key := range keys {
		result[i] = [2]string{
			key,
			transport.masker.Mask(strings.Join(headers[key], ", ")),
		}
	}

	return result
}
