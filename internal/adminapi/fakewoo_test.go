package adminapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeWoo emulates the product and media endpoints in memory
type fakeWoo struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]map[string]interface{}
	media    map[int64]bool
	fail     bool
	srv      *httptest.Server
}

func newFakeWoo(t *testing.T) *fakeWoo {
	f := &fakeWoo{
		nextID:   500,
		products: map[int64]map[string]interface{}{},
		media:    map[int64]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/products", f.handleProducts)
	mux.HandleFunc("/wp-json/wc/v3/products/", f.handleProduct)
	mux.HandleFunc("/wp-json/wp/v2/media", f.handleUpload)
	mux.HandleFunc("/wp-json/wp/v2/media/", f.handleMediaDelete)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeWoo) URL() string { return f.srv.URL }

func (f *fakeWoo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.products)
}

func (f *fakeWoo) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *fakeWoo) failing(w http.ResponseWriter) bool {
	if !f.fail {
		return false
	}
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprint(w, `{"code":"internal","message":"store unavailable"}`)
	return true
}

func (f *fakeWoo) create(doc map[string]interface{}) map[string]interface{} {
	f.nextID++
	doc["id"] = f.nextID
	f.products[f.nextID] = doc
	return doc
}

func (f *fakeWoo) handleProducts(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		ids := make([]int64, 0, len(f.products))
		for id := range f.products {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		docs := make([]map[string]interface{}, 0, len(ids))
		for _, id := range ids {
			docs = append(docs, f.products[id])
		}
		w.Header().Set("X-WP-TotalPages", "1")
		_ = json.NewEncoder(w).Encode(docs)
	case http.MethodPost:
		var doc map[string]interface{}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &doc)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(f.create(doc))
	}
}

func (f *fakeWoo) handleProduct(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing(w) {
		return
	}
	tail := strings.TrimPrefix(r.URL.Path, "/wp-json/wc/v3/products/")
	if tail == "batch" {
		var req struct {
			Create []map[string]interface{} `json:"create"`
			Delete []int64                  `json:"delete"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		rsp := map[string]interface{}{}
		var created []map[string]interface{}
		for _, doc := range req.Create {
			created = append(created, f.create(doc))
		}
		for _, id := range req.Delete {
			delete(f.products, id)
		}
		rsp["create"] = created
		_ = json.NewEncoder(w).Encode(rsp)
		return
	}
	id, _ := strconv.ParseInt(tail, 10, 64)
	doc, ok := f.products[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":"woocommerce_rest_product_invalid_id","message":"Invalid ID."}`)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var patch map[string]interface{}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &patch)
		for k, v := range patch {
			doc[k] = v
		}
		_ = json.NewEncoder(w).Encode(doc)
	case http.MethodDelete:
		delete(f.products, id)
		_ = json.NewEncoder(w).Encode(doc)
	}
}

func (f *fakeWoo) handleUpload(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, _, err := r.FormFile("file"); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.nextID++
	f.media[f.nextID] = true
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, `{"id":%d,"source_url":"%s/uploads/%d.png"}`, f.nextID, f.srv.URL, f.nextID)
}

func (f *fakeWoo) handleMediaDelete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/wp-json/wp/v2/media/"), 10, 64)
	delete(f.media, id)
	fmt.Fprint(w, `{"deleted":true}`)
}
