package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rmpassist/rmp-assistant/internal/apperrors"
	"github.com/rmpassist/rmp-assistant/internal/scraper"
	"github.com/rmpassist/rmp-assistant/internal/service"
	"github.com/rmpassist/rmp-assistant/internal/vectorstore/memory"
)

func TestIngestHandler_SubmitURL(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			body:       `{"url":"https://www.ratemyprofessors.com/professor/1"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"upsertedCount":1}`,
		},
		{
			name:       "invalid url",
			body:       `{"url":"https://example.com/professor/1"}`,
			submitErr:  apperrors.NewInvalidInputError("url", "Invalid URL"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid URL"}`,
		},
		{
			name:       "extraction failure",
			body:       `{"url":"https://www.ratemyprofessors.com/professor/1"}`,
			submitErr:  apperrors.NewExtractionError("u", "no reviews found"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Failed to scrape data"}`,
		},
		{
			name:       "fetch failure",
			body:       `{"url":"https://www.ratemyprofessors.com/professor/1"}`,
			submitErr:  apperrors.NewUpstreamError(apperrors.StageFetch, errors.New("unexpected status 503")),
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"Failed to fetch page"}`,
		},
		{
			name:       "embedding failure",
			body:       `{"url":"https://www.ratemyprofessors.com/professor/1"}`,
			submitErr:  apperrors.NewUpstreamError(apperrors.StageEmbed, errors.New("quota")),
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"Failed to store professor"}`,
		},
		{
			name:       "upsert failure",
			body:       `{"url":"https://www.ratemyprofessors.com/professor/1"}`,
			submitErr:  apperrors.NewUpstreamError(apperrors.StageUpsert, errors.New("down")),
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"Failed to store professor"}`,
		},
		{
			name:       "malformed json",
			body:       `{"url":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockURLSubmitter{submitFunc: func(context.Context, string) (int, error) {
				if tt.submitErr != nil {
					return 0, tt.submitErr
				}

				return 1, nil
			}}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/submit-url", strings.NewReader(tt.body))
			NewIngestHandler(svc).SubmitURL(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestIngestHandler_SubmitURL_RejectsBeforeService(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing url", body: `{}`},
		{name: "empty url", body: `{"url":""}`},
		{name: "null byte", body: `{"url":"https://www.ratemyprofessors.com/professor/1\u0000"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockURLSubmitter{}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/submit-url", strings.NewReader(tt.body))
			NewIngestHandler(svc).SubmitURL(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Invalid URL"}`, rec.Body.String())
			assert.Zero(t, svc.calls)
		})
	}
}

func TestIngestHandler_URLWithoutDomainIsNotFetched(t *testing.T) {
	var fetches int

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches++

		w.WriteHeader(http.StatusOK)
	}))
	defer page.Close()

	svc := service.NewIngestionService(service.IngestionServiceParams{
		Scraper:   scraper.New(scraper.Options{}),
		Embedder:  nil,
		Store:     memory.NewStore(),
		Domain:    "ratemyprofessors.com",
		Namespace: "ns1",
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/submit-url", strings.NewReader(`{"url":"`+page.URL+`/professor/1"}`))
	NewIngestHandler(svc).SubmitURL(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid URL"}`, rec.Body.String())
	assert.Zero(t, fetches)
}
