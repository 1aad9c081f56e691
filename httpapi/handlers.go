package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/next-trace/scg-recommender/agents"
	"github.com/next-trace/scg-recommender/orchestrator"
	"github.com/next-trace/scg-recommender/validation"
)

const maxBodyBytes = 1 << 20

// RecommendBody is the POST /recommend payload.
type RecommendBody struct {
	UserID    string  `json:"user_id" validate:"required"`
	SeedMovie *string `json:"seed_movie"`
	Genre     *string `json:"genre"`
	Query     *string `json:"query"`
	Num       *int    `json:"num" validate:"omitempty,gte=1,lte=20"`
	Region    *string `json:"region" validate:"omitempty,region"`
}

func (b RecommendBody) request() orchestrator.Request {
	req := orchestrator.Request{UserID: b.UserID}

	if b.SeedMovie != nil {
		req.SeedItem = *b.SeedMovie
	}

	if b.Genre != nil {
		req.Category = *b.Genre
	}

	if b.Query != nil {
		req.Query = *b.Query
	}

	if b.Num != nil {
		req.Count = *b.Num
	}

	if b.Region != nil {
		req.Region = *b.Region
	}

	return req
}

type detailBody struct {
	Detail any `json:"detail"`
}

type healthBody struct {
	Status   string   `json:"status"`
	Handlers []string `json:"handlers"`
}

func (rt *Router) recommend(w http.ResponseWriter, r *http.Request) {
	var body RecommendBody

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		rt.respond(w, r, http.StatusUnprocessableEntity, detailBody{Detail: "invalid JSON body"})
		return
	}

	if err := validation.Struct(body); err != nil {
		rt.respondValidation(w, r, err)
		return
	}

	res, err := rt.pipeline.Recommend(r.Context(), body.request())
	if err != nil {
		rt.respondPipelineError(w, r, err)
		return
	}

	rt.respond(w, r, http.StatusOK, res)
}

func (rt *Router) whereToWatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	itemID, err := strconv.ParseInt(q.Get("movie_id"), 10, 64)
	if err != nil {
		rt.respond(w, r, http.StatusUnprocessableEntity, detailBody{Detail: []validation.FieldError{{
			Field:   "movie_id",
			Tag:     "int",
			Message: "movie_id must be an integer",
		}}})

		return
	}

	params := struct {
		Region string `json:"region" validate:"omitempty,region"`
	}{Region: q.Get("region")}

	if err := validation.Struct(params); err != nil {
		rt.respondValidation(w, r, err)
		return
	}

	reply, err := rt.pipeline.WhereToWatch(r.Context(), itemID, params.Region)
	if err != nil {
		rt.respondPipelineError(w, r, err)
		return
	}

	rt.respond(w, r, http.StatusOK, reply)
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if rt.handlers != nil {
		names = rt.handlers.Names()
	}

	rt.respond(w, r, http.StatusOK, healthBody{Status: string(agents.StatusOK), Handlers: names})
}

func (rt *Router) respondValidation(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Errors
	if errors.As(err, &verr) {
		rt.respond(w, r, http.StatusUnprocessableEntity, detailBody{Detail: verr.Fields})
		return
	}

	rt.respond(w, r, http.StatusUnprocessableEntity, detailBody{Detail: err.Error()})
}

// respondPipelineError maps stage rejections to 400 and hides everything else.
func (rt *Router) respondPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var re *orchestrator.RequestError
	if errors.As(err, &re) {
		rt.respond(w, r, http.StatusBadRequest, detailBody{Detail: re.Reason})
		return
	}

	rt.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	rt.respond(w, r, http.StatusInternalServerError, detailBody{Detail: "internal error"})
}

func (rt *Router) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		rt.logger.ErrorContext(r.Context(), "encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		rt.logger.DebugContext(r.Context(), "write response", "error", err)
	}
}
