package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/harrisonrobin/taskplan/pkg/auth"
	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// NewClient creates a Google Calendar client authenticated with the cached
// OAuth token.
func NewClient(ctx context.Context, loc *time.Location, log zerolog.Logger) (*CalendarClient, error) {
	client, err := auth.GetClient(ctx, auth.CalendarScopes, log)
	if err != nil {
		return nil, err
	}
	return NewClientWithHTTP(ctx, client, loc, log)
}

// NewClientWithHTTP builds the client over an already authenticated
// *http.Client. Extra options (e.g. option.WithEndpoint) are passed through.
func NewClientWithHTTP(ctx context.Context, hc *http.Client, loc *time.Location, log zerolog.Logger, opts ...option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}
	return NewCalendarClient(srv, loc, log), nil
}
