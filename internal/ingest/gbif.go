// Package ingest pulls occurrence and climate data from their upstream
// sources and loads it into the store.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/mpeterson/avimap/internal/httputil"
	"github.com/mpeterson/avimap/internal/metrics"
	"github.com/mpeterson/avimap/internal/models"
)

const (
	gbifBaseURL  = "https://api.gbif.org/v1/occurrence/search"
	gbifPageSize = 300
	userAgent    = "avimap/1.0"
)

// GBIFClient fetches occurrence records from the GBIF search API. Retries
// ride an exponential backoff; a circuit breaker stops hammering the API
// when it is persistently failing.
type GBIFClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewGBIFClient() *GBIFClient {
	return &GBIFClient{
		baseURL: gbifBaseURL,
		client:  httputil.NewClient(userAgent),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "gbif",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

type gbifResponse struct {
	Offset       int          `json:"offset"`
	Limit        int          `json:"limit"`
	EndOfRecords bool         `json:"endOfRecords"`
	Results      []gbifRecord `json:"results"`
}

type gbifRecord struct {
	ScientificName   string   `json:"scientificName"`
	Species          string   `json:"species"`
	VernacularName   string   `json:"vernacularName"`
	DecimalLatitude  *float64 `json:"decimalLatitude"`
	DecimalLongitude *float64 `json:"decimalLongitude"`
	IndividualCount  *int     `json:"individualCount"`
	EventDate        string   `json:"eventDate"`
}

// FetchOccurrences pages through GBIF results for a species between two
// dates, mapping usable records to occurrences. Records without coordinates
// or a parseable event date are skipped.
func (c *GBIFClient) FetchOccurrences(scientificName string, from, to time.Time) ([]models.Occurrence, error) {
	var all []models.Occurrence
	offset := 0

	for {
		page, err := c.fetchPage(scientificName, from, to, offset)
		if err != nil {
			return nil, err
		}

		for _, rec := range page.Results {
			occ, ok := rec.toOccurrence(scientificName)
			if !ok {
				continue
			}
			all = append(all, occ)
		}

		if page.EndOfRecords || len(page.Results) == 0 {
			return all, nil
		}
		offset += page.Limit
	}
}

func (c *GBIFClient) fetchPage(scientificName string, from, to time.Time, offset int) (*gbifResponse, error) {
	params := url.Values{}
	params.Set("scientificName", scientificName)
	params.Set("hasCoordinate", "true")
	params.Set("eventDate", fmt.Sprintf("%s,%s", from.Format("2006-01-02"), to.Format("2006-01-02")))
	params.Set("limit", fmt.Sprint(gbifPageSize))
	params.Set("offset", fmt.Sprint(offset))
	reqURL := c.baseURL + "?" + params.Encode()

	var body []byte
	operation := func() error {
		result, err := c.breaker.Execute(func() (any, error) {
			start := time.Now()
			resp, err := c.client.Get(reqURL)
			metrics.GBIFAPILatency.Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.GBIFAPICallsTotal.WithLabelValues("error").Inc()
				return nil, err
			}
			defer resp.Body.Close()

			metrics.GBIFAPICallsTotal.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return nil, fmt.Errorf("gbif: status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(resp.Body)
				return nil, backoff.Permanent(fmt.Errorf("gbif: status %d: %s", resp.StatusCode, string(b)))
			}
			return io.ReadAll(resp.Body)
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return backoff.Permanent(fmt.Errorf("gbif circuit open: %w", err))
			}
			return err
		}
		body = result.([]byte)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	var page gbifResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("unmarshal gbif response: %w", err)
	}
	return &page, nil
}

func (r gbifRecord) toOccurrence(scientificName string) (models.Occurrence, bool) {
	if r.DecimalLatitude == nil || r.DecimalLongitude == nil || r.EventDate == "" {
		return models.Occurrence{}, false
	}

	// Event dates arrive as plain days, timestamps, or intervals; take the
	// leading day in all cases.
	day := r.EventDate
	if len(day) > 10 {
		day = day[:10]
	}
	observedOn, err := time.Parse("2006-01-02", day)
	if err != nil {
		return models.Occurrence{}, false
	}

	count := 1
	if r.IndividualCount != nil && *r.IndividualCount > 0 {
		count = *r.IndividualCount
	}

	common := r.VernacularName
	if common == "" {
		common = r.Species
	}

	return models.Occurrence{
		ScientificName: scientificName,
		CommonName:     common,
		ObservedOn:     observedOn,
		Latitude:       *r.DecimalLatitude,
		Longitude:      *r.DecimalLongitude,
		Count:          count,
	}, true
}
