package gitlab

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reconquest/gitlab-ci-stats/internal/failure"
	"github.com/reconquest/karma-go"
	"github.com/reconquest/pkg/log"
	api "gitlab.com/gitlab-org/api/client-go"
)

const DefaultPerPage = 100

type Options struct {
	// Domain is either a bare host like gitlab.com (https is implied) or a
	// full URL with scheme.
	Domain  string
	Token   string
	Timeout time.Duration
	PerPage int
}

type Client struct {
	api     *api.Client
	baseURL string
	perPage int
}

type Pipeline struct {
	ID        int
	Ref       string
	CreatedAt time.Time
}

type Job struct {
	ID             int
	PipelineID     int
	WebURL         string
	Name           string
	Status         string
	CreatedAt      *time.Time
	StartedAt      *time.Time
	Duration       float64
	QueuedDuration float64
}

func BaseURL(domain string) string {
	address := strings.TrimSuffix(strings.TrimSpace(domain), "/")
	if !strings.Contains(address, "://") {
		address = "https://" + address
	}

	return address
}

func NewClient(options Options) (*Client, error) {
	client := &Client{}
	client.baseURL = BaseURL(options.Domain)

	client.perPage = options.PerPage
	if client.perPage <= 0 {
		client.perPage = DefaultPerPage
	}

	httpClient := &http.Client{
		Timeout:   options.Timeout,
		Transport: NewTracingTransport(http.DefaultTransport, options.Token),
	}

	var err error
	client.api, err = api.NewClient(
		options.Token,
		api.WithBaseURL(client.baseURL),
		api.WithHTTPClient(httpClient),
		api.WithoutRetries(),
	)
	if err != nil {
		return nil, karma.Describe("base_url", client.baseURL).Format(
			err,
			"unable to create gitlab client",
		)
	}

	return client, nil
}

func (client *Client) BaseURL() string {
	return client.baseURL
}

// CheckBranch returns NotFoundError if the project has no such branch.
func (client *Client) CheckBranch(
	ctx context.Context,
	project string,
	branch string,
) error {
	context := karma.
		Describe("project", project).
		Describe("branch", branch)

	log.Debugf(context, "checking branch")

	_, _, err := client.api.Branches.GetBranch(
		project,
		branch,
		api.WithContext(ctx),
	)
	if err != nil {
		return classify(ctx, err, context, "unable to get branch")
	}

	return nil
}

// ListPipelines calls fn for every pipeline on the branch created at or after
// since. Pipelines are requested newest first, so paging stops at the first
// page that contains an older pipeline.
func (client *Client) ListPipelines(
	ctx context.Context,
	project string,
	branch string,
	since time.Time,
	fn func(Pipeline) error,
) error {
	options := &api.ListProjectPipelinesOptions{
		ListOptions: api.ListOptions{
			Page:    1,
			PerPage: client.perPage,
		},
		Ref:     api.Ptr(branch),
		OrderBy: api.Ptr("id"),
		Sort:    api.Ptr("desc"),
	}

	for {
		context := karma.
			Describe("project", project).
			Describe("branch", branch).
			Describe("page", options.Page)

		log.Debugf(context, "listing pipelines")

		pipelines, response, err := client.api.Pipelines.ListProjectPipelines(
			project,
			options,
			api.WithContext(ctx),
		)
		if err != nil {
			return classify(ctx, err, context, "unable to list pipelines")
		}

		reachedSince := false
		for _, info := range pipelines {
			if info.CreatedAt == nil {
				log.Warningf(nil, "pipeline %d has no creation time, skipping", info.ID)
				continue
			}

			if info.Ref != branch {
				log.Debugf(
					context.Describe("pipeline", info.ID),
					"skipping pipeline on another ref: %s", info.Ref,
				)
				continue
			}

			if info.CreatedAt.Before(since) {
				reachedSince = true
				continue
			}

			err := fn(Pipeline{
				ID:        info.ID,
				Ref:       info.Ref,
				CreatedAt: info.CreatedAt.UTC(),
			})
			if err != nil {
				return err
			}
		}

		if reachedSince || response.NextPage == 0 {
			return nil
		}

		options.Page = response.NextPage
	}
}

// ListJobs calls fn for every job of the pipeline, retried ones included.
func (client *Client) ListJobs(
	ctx context.Context,
	project string,
	pipelineID int,
	fn func(Job) error,
) error {
	options := &api.ListJobsOptions{
		ListOptions: api.ListOptions{
			Page:    1,
			PerPage: client.perPage,
		},
		IncludeRetried: api.Ptr(true),
	}

	for {
		context := karma.
			Describe("project", project).
			Describe("pipeline", pipelineID).
			Describe("page", options.Page)

		log.Tracef(context, "listing jobs")

		jobs, response, err := client.api.Jobs.ListPipelineJobs(
			project,
			pipelineID,
			options,
			api.WithContext(ctx),
		)
		if err != nil {
			return classify(ctx, err, context, "unable to list pipeline jobs")
		}

		for _, job := range jobs {
			err := fn(newJob(job, pipelineID))
			if err != nil {
				return err
			}
		}

		if response.NextPage == 0 {
			return nil
		}

		options.Page = response.NextPage
	}
}

// DownloadTrace copies the raw log of the job into writer.
func (client *Client) DownloadTrace(
	ctx context.Context,
	project string,
	jobID int,
	writer io.Writer,
) error {
	context := karma.
		Describe("project", project).
		Describe("job", jobID)

	log.Tracef(context, "downloading job trace")

	trace, _, err := client.api.Jobs.GetTraceFile(
		project,
		jobID,
		api.WithContext(ctx),
	)
	if err != nil {
		return classify(ctx, err, context, "unable to download job trace")
	}

	_, err = io.Copy(writer, trace)
	if err != nil {
		return failure.IO(context.Format(err, "unable to write job trace"))
	}

	return nil
}

func newJob(job *api.Job, pipelineID int) Job {
	result := Job{
		ID:             job.ID,
		PipelineID:     job.Pipeline.ID,
		WebURL:         job.WebURL,
		Name:           job.Name,
		Status:         job.Status,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		Duration:       job.Duration,
		QueuedDuration: job.QueuedDuration,
	}

	if result.PipelineID == 0 {
		result.PipelineID = pipelineID
	}

	return result
}

func classify(
	ctx context.Context,
	err error,
	description *karma.Context,
	message string,
) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if errors.Is(err, api.ErrNotFound) {
		return failure.NotFound(
			description.
				Describe("status_code", http.StatusNotFound).
				Format(err, "%s", message),
		)
	}

	var errResponse *api.ErrorResponse
	if errors.As(err, &errResponse) && errResponse.Response != nil {
		code := errResponse.Response.StatusCode
		reason := description.Describe("status_code", code).Format(err, "%s", message)

		switch code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return failure.Auth(reason)
		case http.StatusNotFound:
			return failure.NotFound(reason)
		default:
			return failure.Network(reason)
		}
	}

	return failure.Network(description.Format(err, "%s", message))
}
