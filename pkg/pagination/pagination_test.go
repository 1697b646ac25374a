package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContextDefaults(t *testing.T) {
	p := paramsFor(t, "")
	if p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("defaults = %+v, want limit %d offset 0", p, DefaultLimit)
	}
}

func TestFromContextCustomValues(t *testing.T) {
	p := paramsFor(t, "limit=50&offset=40")
	if p.Limit != 50 || p.Offset != 40 {
		t.Errorf("params = %+v, want limit 50 offset 40", p)
	}
}

func TestFromContextClamping(t *testing.T) {
	p := paramsFor(t, "limit=5000&offset=-3")
	if p.Limit != MaxLimit {
		t.Errorf("limit = %d, want clamped to %d", p.Limit, MaxLimit)
	}
	if p.Offset != 0 {
		t.Errorf("offset = %d, want clamped to 0", p.Offset)
	}
}

func TestFromContextGarbage(t *testing.T) {
	p := paramsFor(t, "limit=abc&offset=xyz")
	if p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("params = %+v, want defaults", p)
	}
}

func TestSQL(t *testing.T) {
	got := Params{Limit: 25, Offset: 50}.SQL()
	if got != "LIMIT 25 OFFSET 50" {
		t.Errorf("SQL() = %q", got)
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2, 3}, 10, 3, 0)
	if r.Total != 10 || r.Limit != 3 || r.Offset != 0 {
		t.Errorf("response = %+v", r)
	}
	if !r.HasMore {
		t.Error("HasMore = false, want true")
	}

	r = NewResponse([]int{1}, 10, 3, 9)
	if r.HasMore {
		t.Error("HasMore = true on last page, want false")
	}
}

func TestPageNavigation(t *testing.T) {
	p := Params{Limit: 10, Offset: 20}
	if !p.HasNext(50) || p.HasNext(30) {
		t.Error("HasNext boundaries wrong")
	}
	if !p.HasPrevious() {
		t.Error("HasPrevious = false at offset 20")
	}
	if p.NextOffset() != 30 {
		t.Errorf("NextOffset = %d, want 30", p.NextOffset())
	}
	if p.PreviousOffset() != 10 {
		t.Errorf("PreviousOffset = %d, want 10", p.PreviousOffset())
	}

	first := Params{Limit: 10, Offset: 5}
	if first.PreviousOffset() != 0 {
		t.Errorf("PreviousOffset = %d, want clamped to 0", first.PreviousOffset())
	}
}
