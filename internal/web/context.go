package web

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/hrpipe/internal/hr"
	mw "github.com/JonMunkholm/hrpipe/internal/web/middleware"
)

// caller returns the identity Auth stored on the request. Routes are only
// mounted behind Auth, so a missing identity is a wiring bug.
func caller(r *http.Request) mw.Identity {
	id, ok := mw.IdentityFrom(r.Context())
	if !ok {
		panic("web: request reached a handler without an identity")
	}
	return id
}

// accountingYear uses ?year when given, else LEAVE_ACCOUNTING_YEAR, else the
// current calendar year.
func (s *Server) accountingYear(requested int) (hr.AccountingYear, error) {
	if requested != 0 {
		y, err := hr.ParseAccountingYear(requested)
		if err != nil {
			return 0, fmt.Errorf("year: %w", err)
		}
		return y, nil
	}
	return hr.ResolveAccountingYear(s.cfg.Leave.AccountingYear, s.now()), nil
}
