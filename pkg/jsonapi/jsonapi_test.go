package jsonapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NewError(http.StatusTooManyRequests, "quota_exceeded").
		Detail("Daily limit of 10 requests exceeded").
		Meta("limit", 10).
		Meta("used", 10).
		Build())

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentType {
		t.Errorf("Content-Type = %q", ct)
	}

	var doc struct {
		Errors []Error `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(doc.Errors))
	}
	e := doc.Errors[0]
	if e.Code != "quota_exceeded" || e.Title != "Too Many Requests" || e.Status != "429" {
		t.Errorf("error = %+v", e)
	}
	if e.Meta["limit"] != float64(10) || e.Meta["used"] != float64(10) {
		t.Errorf("meta = %v", e.Meta)
	}
}

func TestWriteError_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestWriteCollection(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCollection(rec, nil, &Pagination{Total: 0, Limit: 20})

	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, ok := doc["data"].([]any)
	if !ok || len(data) != 0 {
		t.Errorf("data = %v, want empty array", doc["data"])
	}
}

func TestPagination_Links(t *testing.T) {
	tests := []struct {
		name     string
		p        Pagination
		wantPrev bool
		wantNext bool
	}{
		{"first page", Pagination{Total: 50, Limit: 20, Offset: 0, BaseURL: "/admin/users"}, false, true},
		{"middle page", Pagination{Total: 50, Limit: 20, Offset: 20, BaseURL: "/admin/users"}, true, true},
		{"last page", Pagination{Total: 50, Limit: 20, Offset: 40, BaseURL: "/admin/users"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := tt.p.Links()
			if (links.Prev != "") != tt.wantPrev {
				t.Errorf("Prev = %q, want present %v", links.Prev, tt.wantPrev)
			}
			if (links.Next != "") != tt.wantNext {
				t.Errorf("Next = %q, want present %v", links.Next, tt.wantNext)
			}
		})
	}

	if (&Pagination{Limit: 10}).Links() != nil {
		t.Error("Links() without BaseURL should be nil")
	}
}

func TestParsePaginationParams(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 20, 0},
		{"limit=5&offset=10", 5, 10},
		{"page[limit]=7&page[offset]=3", 7, 3},
		{"limit=1000", 100, 0},
		{"limit=abc&offset=-1", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			limit, offset := ParsePaginationParams(q, 20, 100)
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("got %d/%d, want %d/%d", limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestResourceBuilder(t *testing.T) {
	r := NewResource("accounts", "acct_1").
		Attr("name", "Ada").
		AttrIf(false, "secret_key", "x").
		Meta("masked", true).
		Build()

	if r.Type != "accounts" || r.ID != "acct_1" {
		t.Errorf("resource = %+v", r)
	}
	if _, ok := r.Attributes["secret_key"]; ok {
		t.Error("AttrIf(false) should not set the attribute")
	}
	if r.Meta["masked"] != true {
		t.Errorf("meta = %v", r.Meta)
	}
}
