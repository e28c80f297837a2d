package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/intellicog/records/internal/config"
	"github.com/intellicog/records/internal/models"
)

// PatientIndex is a full-text index of patients scoped by owner.
type PatientIndex interface {
	Index(ctx context.Context, p models.Patient) error
	Remove(ctx context.Context, patientID uint) error
	Search(ctx context.Context, userID uint, q string, limit int) ([]uint, error)
}

type document struct {
	ID       uint   `json:"id"`
	UserID   uint   `json:"user_id"`
	DNI      string `json:"dni"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
}

type ElasticIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewElasticIndex(cfg config.ESConfig) (*ElasticIndex, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &ElasticIndex{es: es, index: cfg.Index}, nil
}

func (x *ElasticIndex) Index(ctx context.Context, p models.Patient) error {
	body, err := json.Marshal(document{
		ID:       p.ID,
		UserID:   p.UserID,
		DNI:      p.DNI,
		Name:     p.Name,
		LastName: p.LastName,
	})
	if err != nil {
		return err
	}

	res, err := x.es.Index(x.index, bytes.NewReader(body),
		x.es.Index.WithContext(ctx),
		x.es.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index patient %d: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index patient %d: %s", p.ID, readError(res.Body, res.Status()))
	}
	return nil
}

func (x *ElasticIndex) Remove(ctx context.Context, patientID uint) error {
	res, err := x.es.Delete(x.index, strconv.FormatUint(uint64(patientID), 10),
		x.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("remove patient %d: %w", patientID, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("remove patient %d: %s", patientID, readError(res.Body, res.Status()))
	}
	return nil
}

func (x *ElasticIndex) Search(ctx context.Context, userID uint, q string, limit int) ([]uint, error) {
	query := map[string]any{
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":     q,
						"fields":    []string{"name^2", "last_name^2", "dni"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]any{
					"term": map[string]any{"user_id": userID},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search patients: %s", readError(res.Body, res.Status()))
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		if h.Source.UserID == userID {
			ids = append(ids, h.Source.ID)
		}
	}
	return ids, nil
}

func readError(body io.Reader, status string) string {
	b, _ := io.ReadAll(io.LimitReader(body, 2048))
	if len(b) == 0 {
		return status
	}
	return status + ": " + string(b)
}
