// Package search keeps the mirror index in sync and serves the admin
// name search. Index maintenance is best-effort: a failed write is
// logged by the caller, never surfaced to the client.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/mirrorstack/mirror_server/internal/models"
)

const Index = "mirror"

type mirrorDoc struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	IPAddress string `json:"ip_address,omitempty"`
}

func IndexMirror(ctx context.Context, es *elasticsearch.Client, m *models.Mirror) error {
	doc := mirrorDoc{ID: m.ID, Name: m.Name, IPAddress: m.IPAddress}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := es.Index(
		Index,
		bytes.NewReader(data),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(strconv.FormatUint(uint64(m.ID), 10)),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index mirror %d: %s", m.ID, res.Status())
	}
	return nil
}

func DeleteMirror(ctx context.Context, es *elasticsearch.Client, id uint) error {
	res, err := es.Delete(
		Index,
		strconv.FormatUint(uint64(id), 10),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	// 404 is fine, the doc may never have been indexed
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete mirror %d: %s", id, res.Status())
	}
	return nil
}

// Search runs a fuzzy name match over all mirrors.
func Search(ctx context.Context, es *elasticsearch.Client, query string, from, size int) (int64, []uint, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"name": map[string]interface{}{
					"query":     query,
					"fuzziness": "AUTO",
				},
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, err
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(Index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source mirrorDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		ids = append(ids, hit.Source.ID)
	}
	return r.Hits.Total.Value, ids, nil
}

// ParsePagination reads from/size query values with defaults.
func ParsePagination(fromStr, sizeStr string) (int, int) {
	from, size := 0, 20
	if v, err := strconv.Atoi(strings.TrimSpace(fromStr)); err == nil && v >= 0 {
		from = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(sizeStr)); err == nil && v > 0 && v <= 100 {
		size = v
	}
	return from, size
}
