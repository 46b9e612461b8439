package generatorsvc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/smartsched/console/core"
	"github.com/smartsched/console/core/schedule"
	"github.com/smartsched/console/core/timetable"
)

const (
	generateEndpoint = "/generate_timetable"
	validateEndpoint = "/validate_input"
)

// Client talks to the scheduling engine over HTTP. The engine owns the
// solver; the console only ships configurations out and results back.
type Client struct {
	baseURL string
	rest    *rest.Client
}

var _ schedule.Generator = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{
		baseURL: conf.Generator.BaseURL,
		rest:    &rest.Client{HTTPClient: &http.Client{Timeout: conf.Generator.Timeout}},
	}
}

func (c *Client) Generate(ctx context.Context, cfg timetable.Config) (schedule.Result, error) {
	var res schedule.Result
	if err := c.post(ctx, generateEndpoint, cfg, &res); err != nil {
		return schedule.Result{}, err
	}
	if res.Unfulfilled == nil {
		res.Unfulfilled = schedule.Unfulfilled{}
	}
	return res, nil
}

func (c *Client) ValidateInput(ctx context.Context, cfg timetable.Config) (schedule.InputReport, error) {
	var report schedule.InputReport
	if err := c.post(ctx, validateEndpoint, cfg, &report); err != nil {
		return schedule.InputReport{}, err
	}
	return report, nil
}

func (c *Client) post(ctx context.Context, endpoint string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encoding engine request")
	}

	req := rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + endpoint,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "calling scheduling engine")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("scheduling engine: %s", engineError(res))
	}
	if err := json.Unmarshal([]byte(res.Body), out); err != nil {
		return errors.Wrap(err, "decoding engine response")
	}
	return nil
}

// engineError extracts the engine's error message, falling back to the raw
// body.
func engineError(res *rest.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(res.Body), &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return res.Body
}
