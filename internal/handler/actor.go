package handler

import (
	"net/http"
	"strconv"

	"github.com/ayurmed/orders/internal/domain/order"
)

// Gateway identity headers. The upstream gateway authenticates the caller
// and forwards the verified identity here.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

func actorFrom(r *http.Request) (order.Actor, bool) {
	id, err := strconv.ParseInt(r.Header.Get(headerUserID), 10, 64)
	if err != nil || id <= 0 {
		return order.Actor{}, false
	}
	return order.Actor{UserID: id, Role: r.Header.Get(headerUserRole)}, true
}

// requireUser rejects requests without a valid identity header.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actorFrom(r); !ok {
			writeMessage(w, http.StatusUnauthorized, "error", "missing or invalid user identity")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects requests whose identity is not an operator.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "error", "missing or invalid user identity")
			return
		}
		if !actor.Admin() {
			writeMessage(w, http.StatusForbidden, "error", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
