package http

import (
	"net/http"
	"strconv"

	"github.com/artpar/quotagate/domain/gate"
	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/pkg/jsonapi"
)

// writeGateError writes a categorized failure as a JSON:API error.
// Quota rejections carry limit and used in meta and in rate limit headers.
func writeGateError(w http.ResponseWriter, err error) {
	ge := gate.As(err)

	b := jsonapi.NewError(ge.Status(), string(ge.Kind)).Detail(ge.Message)
	if ge.Kind == gate.KindQuotaExceeded {
		b.Meta("limit", ge.Limit).Meta("used", ge.Used)
		writeRateHeaders(w, quota.Admission{Used: ge.Used, Limit: ge.Limit})
	}
	if ge.Kind == gate.KindInvalidFormat || ge.Kind == gate.KindUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}

	jsonapi.WriteError(w, b.Build())
}

// writeRateHeaders reports the day's quota position. Unlimited plans get none.
func writeRateHeaders(w http.ResponseWriter, a quota.Admission) {
	if a.Unlimited || a.Limit < 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(a.Limit, 10))
	h.Set("X-RateLimit-Used", strconv.FormatInt(a.Used, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(a.Remaining(), 10))
}
