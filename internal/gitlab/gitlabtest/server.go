// Package gitlabtest runs an in-process imitation of the GitLab REST API v4
// endpoints used by gitlab-ci-stats.
package gitlabtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

type Pipeline struct {
	ID        int       `json:"id"`
	Ref       string    `json:"ref"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Job struct {
	ID             int        `json:"id"`
	Name           string     `json:"name"`
	Stage          string     `json:"stage"`
	Status         string     `json:"status"`
	WebURL         string     `json:"web_url"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at"`
	Duration       *float64   `json:"duration"`
	QueuedDuration *float64   `json:"queued_duration"`
	Pipeline       struct {
		ID  int    `json:"id"`
		Ref string `json:"ref"`
	} `json:"pipeline"`
}

type Server struct {
	*httptest.Server

	Token   string
	PerPage int

	mutex     sync.Mutex
	pipelines map[string][]Pipeline
	branches  map[string]map[string]bool
	jobs      map[int][]Job
	traces    map[int]string
	requests  []string
}

func NewServer(token string) *Server {
	server := &Server{
		Token:     token,
		pipelines: map[string][]Pipeline{},
		branches:  map[string]map[string]bool{},
		jobs:      map[int][]Job{},
		traces:    map[int]string{},
	}

	router := chi.NewRouter()
	router.Use(server.record)
	router.Use(server.authenticate)
	router.Get("/api/v4/projects/{project}/repository/branches/{branch}", server.getBranch)
	router.Get("/api/v4/projects/{project}/pipelines", server.listPipelines)
	router.Get("/api/v4/projects/{project}/pipelines/{pipeline}/jobs", server.listJobs)
	router.Get("/api/v4/projects/{project}/jobs/{job}/trace", server.getTrace)
	router.NotFound(func(writer http.ResponseWriter, _ *http.Request) {
		writeError(writer, http.StatusNotFound, "404 Not Found")
	})

	server.Server = httptest.NewServer(router)

	return server
}

// AddBranch registers the project and its branch without pipelines.
func (server *Server) AddBranch(project string, branch string) {
	server.mutex.Lock()
	defer server.mutex.Unlock()

	server.addBranch(project, branch)
}

func (server *Server) addBranch(project string, branch string) {
	if _, ok := server.pipelines[project]; !ok {
		server.pipelines[project] = []Pipeline{}
	}

	if _, ok := server.branches[project]; !ok {
		server.branches[project] = map[string]bool{}
	}

	server.branches[project][branch] = true
}

// AddPipeline registers the pipeline under the project and its ref as a
// branch. Pipelines are served in descending id order regardless of
// insertion order.
func (server *Server) AddPipeline(project string, pipeline Pipeline, jobs ...Job) {
	server.mutex.Lock()
	defer server.mutex.Unlock()

	server.addBranch(project, pipeline.Ref)
	server.pipelines[project] = append(server.pipelines[project], pipeline)
	for i := range jobs {
		jobs[i].Pipeline.ID = pipeline.ID
		jobs[i].Pipeline.Ref = pipeline.Ref
	}
	if _, ok := server.jobs[pipeline.ID]; !ok {
		server.jobs[pipeline.ID] = []Job{}
	}
	server.jobs[pipeline.ID] = append(server.jobs[pipeline.ID], jobs...)
}

func (server *Server) AddTrace(jobID int, trace string) {
	server.mutex.Lock()
	defer server.mutex.Unlock()

	server.traces[jobID] = trace
}

// Requests returns request lines in the order they were received.
func (server *Server) Requests() []string {
	server.mutex.Lock()
	defer server.mutex.Unlock()

	return append([]string{}, server.requests...)
}

func (server *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		server.mutex.Lock()
		server.requests = append(
			server.requests,
			request.Method+" "+request.URL.EscapedPath()+"?"+request.URL.RawQuery,
		)
		server.mutex.Unlock()

		next.ServeHTTP(writer, request)
	})
}

func (server *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("PRIVATE-TOKEN") != server.Token {
			writeError(writer, http.StatusUnauthorized, "401 Unauthorized")
			return
		}

		next.ServeHTTP(writer, request)
	})
}

func (server *Server) getBranch(writer http.ResponseWriter, request *http.Request) {
	project, err := url.PathUnescape(chi.URLParam(request, "project"))
	if err != nil {
		writeError(writer, http.StatusBadRequest, err.Error())
		return
	}

	branch, err := url.PathUnescape(chi.URLParam(request, "branch"))
	if err != nil {
		writeError(writer, http.StatusBadRequest, err.Error())
		return
	}

	server.mutex.Lock()
	branches, ok := server.branches[project]
	found := ok && branches[branch]
	server.mutex.Unlock()

	switch {
	case !ok:
		writeError(writer, http.StatusNotFound, "404 Project Not Found")
	case !found:
		writeError(writer, http.StatusNotFound, "404 Branch Not Found")
	default:
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]interface{}{
			"name":    branch,
			"merged":  false,
			"default": false,
		})
	}
}

func (server *Server) listPipelines(writer http.ResponseWriter, request *http.Request) {
	project, err := url.PathUnescape(chi.URLParam(request, "project"))
	if err != nil {
		writeError(writer, http.StatusBadRequest, err.Error())
		return
	}

	server.mutex.Lock()
	all, ok := server.pipelines[project]
	server.mutex.Unlock()
	if !ok {
		writeError(writer, http.StatusNotFound, "404 Project Not Found")
		return
	}

	ref := request.URL.Query().Get("ref")

	matched := []Pipeline{}
	for _, pipeline := range all {
		if ref == "" || pipeline.Ref == ref {
			matched = append(matched, pipeline)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ID > matched[j].ID
	})

	server.writePage(writer, request, len(matched), func(from, to int) interface{} {
		return matched[from:to]
	})
}

func (server *Server) listJobs(writer http.ResponseWriter, request *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(request, "pipeline"))
	if err != nil {
		writeError(writer, http.StatusNotFound, "404 Not Found")
		return
	}

	server.mutex.Lock()
	jobs, ok := server.jobs[id]
	server.mutex.Unlock()
	if !ok {
		writeError(writer, http.StatusNotFound, "404 Pipeline Not Found")
		return
	}

	server.writePage(writer, request, len(jobs), func(from, to int) interface{} {
		return jobs[from:to]
	})
}

func (server *Server) getTrace(writer http.ResponseWriter, request *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(request, "job"))
	if err != nil {
		writeError(writer, http.StatusNotFound, "404 Not Found")
		return
	}

	server.mutex.Lock()
	trace, ok := server.traces[id]
	server.mutex.Unlock()
	if !ok {
		writeError(writer, http.StatusNotFound, "404 Not Found")
		return
	}

	writer.Header().Set("Content-Type", "text/plain")
	_, _ = writer.Write([]byte(trace))
}

func (server *Server) writePage(
	writer http.ResponseWriter,
	request *http.Request,
	total int,
	slice func(from, to int) interface{},
) {
	page := queryInt(request, "page", 1)
	perPage := queryInt(request, "per_page", 20)
	if server.PerPage > 0 && perPage > server.PerPage {
		perPage = server.PerPage
	}

	from := (page - 1) * perPage
	if from > total {
		from = total
	}

	to := from + perPage
	if to > total {
		to = total
	}

	header := writer.Header()
	header.Set("Content-Type", "application/json")
	header.Set("X-Page", strconv.Itoa(page))
	header.Set("X-Per-Page", strconv.Itoa(perPage))
	header.Set("X-Total", strconv.Itoa(total))
	header.Set("X-Total-Pages", strconv.Itoa((total+perPage-1)/perPage))
	if to < total {
		header.Set("X-Next-Page", strconv.Itoa(page+1))
	} else {
		header.Set("X-Next-Page", "")
	}

	_ = json.NewEncoder(writer).Encode(slice(from, to))
}

func queryInt(request *http.Request, name string, fallback int) int {
	value, err := strconv.Atoi(request.URL.Query().Get(name))
	if err != nil || value <= 0 {
		return fallback
	}

	return value
}

func writeError(writer http.ResponseWriter, code int, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(code)
	_ = json.NewEncoder(writer).Encode(map[string]string{"message": message})
}
