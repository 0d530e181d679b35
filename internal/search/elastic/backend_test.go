package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeElasticsearch mimics the handful of endpoints the backend calls. Search
// matches any query token as a substring of any string field.
func fakeElasticsearch(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	indices := map[string]map[string]map[string]any{}
	nextID := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		switch {
		case r.URL.Path == "/":
			json.NewEncoder(w).Encode(map[string]any{
				"cluster_name": "test-cluster",
				"version":      map[string]any{"number": "8.17.0"},
			})

		case r.URL.Path == "/_cat/indices":
			var out []map[string]string
			for name, docs := range indices {
				out = append(out, map[string]string{
					"health": "yellow", "status": "open", "index": name,
					"docs.count": fmt.Sprint(len(docs)), "store.size": "1kb",
				})
			}
			out = append(out, map[string]string{"health": "green", "status": "open", "index": ".security", "docs.count": "3"})
			json.NewEncoder(w).Encode(out)

		case len(parts) >= 2 && parts[1] == "_doc":
			index := parts[0]
			var doc map[string]any
			json.NewDecoder(r.Body).Decode(&doc)
			if r.URL.Query().Get("refresh") != "true" {
				t.Errorf("index request without refresh=true")
			}
			id := ""
			if len(parts) == 3 {
				id = parts[2]
			} else {
				nextID++
				id = fmt.Sprintf("gen-%d", nextID)
			}
			if indices[index] == nil {
				indices[index] = map[string]map[string]any{}
			}
			result := "created"
			if _, ok := indices[index][id]; ok {
				result = "updated"
			}
			indices[index][id] = doc
			json.NewEncoder(w).Encode(map[string]any{"_index": index, "_id": id, "result": result})

		case len(parts) == 2 && parts[1] == "_search":
			docs, ok := indices[parts[0]]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]any{
					"error":  map[string]any{"type": "index_not_found_exception", "reason": "no such index [" + parts[0] + "]"},
					"status": 404,
				})
				return
			}
			var body struct {
				Query struct {
					MultiMatch struct {
						Query   string   `json:"query"`
						Fields  []string `json:"fields"`
						Lenient bool     `json:"lenient"`
					} `json:"multi_match"`
				} `json:"query"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			mm := body.Query.MultiMatch
			if !mm.Lenient || len(mm.Fields) != 1 || mm.Fields[0] != "*" {
				t.Errorf("unexpected multi_match %+v", mm)
			}
			var hits []map[string]any
			for id, doc := range docs {
				score := 0.0
				for _, v := range doc {
					s, _ := v.(string)
					for _, tok := range strings.Fields(strings.ToLower(mm.Query)) {
						if strings.Contains(strings.ToLower(s), tok) {
							score++
						}
					}
				}
				if score > 0 {
					hits = append(hits, map[string]any{"_id": id, "_score": score, "_source": doc})
				}
			}
			json.NewEncoder(w).Encode(map[string]any{
				"hits": map[string]any{"total": map[string]any{"value": len(hits)}, "hits": hits},
			})

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBackendIndexAndSearch(t *testing.T) {
	srv := fakeElasticsearch(t)
	b, err := New(srv.URL, "", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	res, err := b.Index(ctx, "products", "p1", map[string]any{"name": "Dell XPS 15", "description": "laptop"})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if res.ID != "p1" || res.Result != "created" {
		t.Errorf("unexpected result %+v", res)
	}
	res, err = b.Index(ctx, "products", "p1", map[string]any{"name": "Dell XPS 15", "description": "laptop"})
	if err != nil || res.Result != "updated" {
		t.Fatalf("second Index: %+v %v", res, err)
	}

	rows, total, err := b.Search(ctx, "products", "laptop", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("expected one hit, got %d (total %d)", len(rows), total)
	}
	if rows[0].ID != "p1" || rows[0].Fields["name"] != "Dell XPS 15" || rows[0].Relevance <= 0 {
		t.Errorf("unexpected row %+v", rows[0])
	}
}

func TestBackendGeneratedID(t *testing.T) {
	b, _ := New(fakeElasticsearch(t).URL, "", "")
	res, err := b.Index(context.Background(), "docs", "", map[string]any{"a": "b"})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if !strings.HasPrefix(res.ID, "gen-") {
		t.Errorf("expected server-generated id, got %s", res.ID)
	}
}

func TestBackendSearchError(t *testing.T) {
	b, _ := New(fakeElasticsearch(t).URL, "", "")
	_, _, err := b.Search(context.Background(), "missing", "x", 5)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "index_not_found_exception") || !strings.Contains(err.Error(), "no such index [missing]") {
		t.Errorf("error does not carry the reason: %v", err)
	}
}

func TestBackendIndicesAndInfo(t *testing.T) {
	b, _ := New(fakeElasticsearch(t).URL, "", "")
	ctx := context.Background()
	b.Index(ctx, "products", "p1", map[string]any{"name": "x"})

	infos, err := b.Indices(ctx)
	if err != nil {
		t.Fatalf("Indices: %v", err)
	}
	if len(infos) != 1 || infos[0].Index != "products" || infos[0].DocsCount != "1" {
		t.Fatalf("unexpected indices %+v", infos)
	}

	info, err := b.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info["cluster_name"] != "test-cluster" {
		t.Errorf("cluster_name = %v", info["cluster_name"])
	}
}

func TestBackendConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b, _ := New(url, "", "")
	if _, err := b.Info(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
}
