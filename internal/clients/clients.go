package clients

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chamada/internal/auth"
)

// Options is the request context shared by every backend call.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
	Tokens        auth.TokenStore
	// OnUnauthorized runs after a 401 or an expired session has cleared the
	// token store.
	OnUnauthorized func(ctx context.Context)
	HTTPClient     *http.Client
	Metrics        *Metrics
	Logger         *zap.Logger
}

type Clients struct {
	transport   *transport
	Session     *SessionClient
	Grades      *GradeClient
	Students    *StudentClient
	Files       *FileClient
	Occurrences *OccurrenceClient
}

func New(opts Options) (*Clients, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("missing_base_url")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 60 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	t := &transport{
		baseURL:        opts.BaseURL,
		http:           opts.HTTPClient,
		timeout:        opts.Timeout,
		uploadTimeout:  opts.UploadTimeout,
		tokens:         opts.Tokens,
		onUnauthorized: opts.OnUnauthorized,
		metrics:        opts.Metrics,
		logger:         opts.Logger.Named("clients"),
		now:            time.Now,
	}
	return &Clients{
		transport:   t,
		Session:     &SessionClient{t: t},
		Grades:      &GradeClient{t: t},
		Students:    &StudentClient{t: t},
		Files:       &FileClient{t: t},
		Occurrences: &OccurrenceClient{t: t},
	}, nil
}

func (c *Clients) Close() {
	if c == nil || c.transport == nil {
		return
	}
	c.transport.http.CloseIdleConnections()
}
