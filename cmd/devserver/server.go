package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nlstn/go-rql"
	"github.com/nlstn/go-rql/builders/gormbuilder"
	"github.com/nlstn/go-rql/cmd/devserver/entities"
	"github.com/nlstn/go-rql/internal/observability"
	"github.com/nlstn/go-rql/rules"
)

type modelRules = rules.ModelRules[*gorm.DB, clause.Expression]

// ruleSets returns the public vocabulary of the server: users and accounts
// refer to each other, tenants and posts are only reachable through them.
func ruleSets() (users, accounts *rules.Set) {
	tenants := &rules.Set{
		Name:   "tenants",
		Model:  &entities.Tenant{},
		Fields: []rules.FieldRule{rules.Field("name")},
	}
	posts := &rules.Set{
		Name:  "posts",
		Model: &entities.Post{},
		Fields: []rules.FieldRule{
			rules.Field("title"),
			rules.Field("published"),
		},
	}
	accounts = &rules.Set{
		Name:  "accounts",
		Model: &entities.Account{},
		Fields: []rules.FieldRule{
			rules.Field("id"),
			rules.Field("name"),
			rules.Field("description").Unordered(),
			rules.Field("status"),
			rules.Field("balance"),
			rules.Field("created_at").As("created"),
		},
	}
	users = &rules.Set{
		Name:  "users",
		Model: &entities.User{},
		Fields: []rules.FieldRule{
			rules.Field("id"),
			rules.Field("external_id").As("uid").Allow(rql.OpEq, rql.OpNe, rql.OpIn),
			rules.Field("name"),
			rules.Field("email").Unordered(),
			rules.Field("age"),
			rules.Field("role").Allow(rql.OpEq, rql.OpNe, rql.OpIn, rql.OpOut),
			rules.Field("is_active").As("active"),
			rules.Field("birth_date").As("born"),
		},
		Relationships: []rules.RelationshipRule{
			rules.Relationship("account", accounts),
			rules.Relationship("posts", posts),
		},
	}
	accounts.Relationships = []rules.RelationshipRule{
		rules.Relationship("tenant", tenants),
		rules.Relationship("users", users),
	}
	return users, accounts
}

type server struct {
	db     *gorm.DB
	logger *slog.Logger
	obs    *observability.Config
	models map[string]*modelRules
}

func newServer(db *gorm.DB, logger *slog.Logger, obs *observability.Config) (*server, error) {
	if err := gormbuilder.RegisterEnum(entities.Roles); err != nil {
		return nil, err
	}

	opts := []rql.Option{rql.WithLogger(logger)}
	if obs.TracerProvider != nil {
		opts = append(opts, rql.WithTracerProvider(obs.TracerProvider))
	}
	if obs.MeterProvider != nil {
		opts = append(opts, rql.WithMeterProvider(obs.MeterProvider))
	}

	userSet, accountSet := ruleSets()
	users, err := rules.New(userSet, gormbuilder.Factory(db), opts...)
	if err != nil {
		return nil, err
	}
	accounts, err := rules.New(accountSet, gormbuilder.Factory(db), opts...)
	if err != nil {
		return nil, err
	}

	return &server{
		db:     db,
		logger: logger,
		obs:    obs,
		models: map[string]*modelRules{"users": users, "accounts": accounts},
	}, nil
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", list[entities.User](s, s.models["users"]))
	mux.HandleFunc("GET /accounts", list[entities.Account](s, s.models["accounts"]))
	mux.HandleFunc("GET /docs/{model}", s.docs)
	mux.HandleFunc("POST /reseed", s.reseed)

	var h http.Handler = mux
	h = logRequests(s.logger)(h)
	h = observability.ServerTimingMiddleware(h)
	h = observability.HTTPMiddleware(s.obs)(h)
	return h
}

// listResponse is the body of a successful list request.
type listResponse[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

// list serves GET /<model>?q=<rql>. An empty q returns every row.
func list[T any](s *server, m *modelRules) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		query := s.db.WithContext(ctx).Model(new(T))

		if text := r.URL.Query().Get("q"); text != "" {
			timing := observability.StartServerTimingWithDesc(ctx, "compile", "rql")
			built, err := m.BuildQueryFrom(ctx, text, query)
			timing.Stop()
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			query = built
		}

		items := []T{}
		if err := query.Find(&items).Error; err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse[T]{Count: len(items), Items: items})
	}
}

func (s *server) docs(w http.ResponseWriter, r *http.Request) {
	m, ok := s.models[r.PathValue("model")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(m.Documentation()))
}

func (s *server) reseed(w http.ResponseWriter, r *http.Request) {
	if err := seedDatabase(s.db.WithContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Database reseeded with default data",
	})
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// writeError maps err to its HTTP status. Query errors are the client's
// fault and are logged at info level.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := rql.HTTPStatus(err)
	body := errorBody{Error: errorDetail{Kind: rql.ErrorKind(err), Message: err.Error()}}

	var verr *rql.ValidationError
	if errors.As(err, &verr) {
		for _, e := range verr.Errors {
			body.Error.Details = append(body.Error.Details, e.Error())
		}
	}

	logger := observability.LoggerWithTrace(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, observability.LogFieldError, err)
	} else {
		logger.Info("query rejected", "path", r.URL.Path, observability.LogFieldError, err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
