package prefetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/conclave-ai/conclave/pkg/models"
)

// HTTPSource is a connector for JSON data APIs. It issues a GET with the
// classified metrics and countries as query parameters and expects a flat
// records payload:
//
//	{ "records": [ { "metric": ..., "value": ..., "confidence": ..., "snippet": ... } ] }
//
// where value may be a JSON number, string, or boolean.
type HTTPSource struct {
	id      string
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates an HTTP connector. The client's timeout stays zero;
// the fan-out's per-source context bounds each fetch.
func NewHTTPSource(id, baseURL string) *HTTPSource {
	return &HTTPSource{id: id, baseURL: baseURL, client: &http.Client{}}
}

// ID returns the stable connector id.
func (s *HTTPSource) ID() string { return s.id }

type httpRecord struct {
	Metric     string          `json:"metric"`
	Value      json.RawMessage `json:"value"`
	Confidence float64         `json:"confidence"`
	Snippet    string          `json:"snippet"`
}

type httpPayload struct {
	Records []httpRecord `json:"records"`
}

// Fetch issues the GET and decodes records into the raw source result.
func (s *HTTPSource) Fetch(ctx context.Context, req *Request) (*SourceResult, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL for %s: %w", s.id, err)
	}
	q := u.Query()
	if metrics := req.Metrics(); len(metrics) > 0 {
		q.Set("metrics", strings.Join(metrics, ","))
	}
	if countries := req.Countries(); len(countries) > 0 {
		q.Set("countries", strings.Join(countries, ","))
	}
	q.Set("query_id", req.Query.ID)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", s.id, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch from %s failed: %w", s.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source %s returned status %d", s.id, resp.StatusCode)
	}

	var payload httpPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", s.id, err)
	}

	result := &SourceResult{}
	for _, rec := range payload.Records {
		result.Records = append(result.Records, Record{
			Metric:     rec.Metric,
			Value:      decodeFactValue(rec.Value),
			Confidence: rec.Confidence,
			Snippet:    rec.Snippet,
		})
	}
	return result, nil
}

// decodeFactValue maps a raw JSON value onto the tagged FactValue union.
func decodeFactValue(raw json.RawMessage) models.FactValue {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return models.NumberValue(num)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return models.BoolValue(b)
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return models.StringValue(str)
	}
	return models.StringValue(string(raw))
}
