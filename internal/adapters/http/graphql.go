package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/usecases"
	"github.com/sakibstark11/geoplotter/internal/pkg/geohash"
	"github.com/sakibstark11/geoplotter/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	cellType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Cell",
		Fields: graphql.Fields{
			"code":     &graphql.Field{Type: graphql.String},
			"center":   &graphql.Field{Type: geoPointType},
			"bounds":   &graphql.Field{Type: boundsType},
			"width_m":  &graphql.Field{Type: graphql.Float},
			"height_m": &graphql.Field{Type: graphql.Float},
			"area_m2":  &graphql.Field{Type: graphql.Float},
		},
	})

	sourceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Source",
		Fields: graphql.Fields{
			"id":    &graphql.Field{Type: graphql.String},
			"kind":  &graphql.Field{Type: graphql.String},
			"url":   &graphql.Field{Type: graphql.String},
			"color": &graphql.Field{Type: graphql.String},
			"codes": &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	runType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RunReport",
		Fields: graphql.Fields{
			"generation":     &graphql.Field{Type: graphql.Int},
			"started_at":     &graphql.Field{Type: graphql.String},
			"duration_ms":    &graphql.Field{Type: graphql.Float},
			"failed_sources": &graphql.Field{Type: graphql.Int},
			"source_counts":  &graphql.Field{Type: graphql.NewList(graphql.Int)},
			"decoded":        &graphql.Field{Type: graphql.Int},
			"decode_errors":  &graphql.Field{Type: graphql.Int},
			"markers":        &graphql.Field{Type: graphql.Int},
			"displayed":      &graphql.Field{Type: graphql.Int},
			"skipped":        &graphql.Field{Type: graphql.String},
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "View",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"state":            &graphql.Field{Type: graphql.String},
			"runs":             &graphql.Field{Type: graphql.Int},
			"mode":             &graphql.Field{Type: graphql.String},
			"label":            &graphql.Field{Type: graphql.String},
			"interval_seconds": &graphql.Field{Type: graphql.Int},
			"created_at":       &graphql.Field{Type: graphql.String},
			"sources":          &graphql.Field{Type: graphql.NewList(sourceType)},
			"last_run":         &graphql.Field{Type: runType},
		},
	})

	viewArgs := graphql.FieldConfigArgument{
		"geohashes": &graphql.ArgumentConfig{Type: graphql.String},
		"color":     &graphql.ArgumentConfig{Type: graphql.String},
		"urls":      &graphql.ArgumentConfig{Type: graphql.String},
		"colors":    &graphql.ArgumentConfig{Type: graphql.String},
		"timer":     &graphql.ArgumentConfig{Type: graphql.Int},
		"label":     &graphql.ArgumentConfig{Type: graphql.String},
		"mode":      &graphql.ArgumentConfig{Type: graphql.String},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"decode": &graphql.Field{
				Type:        cellType,
				Description: "Decode a geohash into its cell",
				Args: graphql.FieldConfigArgument{
					"code": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					code := strings.ToLower(strings.TrimSpace(p.Args["code"].(string)))
					b, err := geohash.DecodeBounds(code)
					if err != nil {
						return nil, err
					}
					w, h := geohash.CellSize(b)
					return map[string]interface{}{
						"code":     code,
						"center":   geohash.Center(b),
						"bounds":   b,
						"width_m":  w,
						"height_m": h,
						"area_m2":  geospatial.RectArea(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon),
					}, nil
				},
			},
			"encode": &graphql.Field{
				Type:        graphql.String,
				Description: "Encode a point as a geohash",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"precision": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 8},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return geohash.Encode(p.Args["lat"].(float64), p.Args["lon"].(float64), p.Args["precision"].(int)), nil
				},
			},
			"view": &graphql.Field{
				Type:        viewType,
				Description: "Get a mounted view by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, err := deps.Views.Get(p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return viewToGraph(v), nil
				},
			},
			"views": &graphql.Field{
				Type:        graphql.NewList(viewType),
				Description: "List mounted views",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					views := deps.Views.List()
					out := make([]map[string]interface{}, 0, len(views))
					for i := range views {
						out = append(out, viewToGraph(&views[i]))
					}
					return out, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"mountView": &graphql.Field{
				Type:        viewType,
				Description: "Mount a view and wait for its first run",
				Args:        viewArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					params, err := usecases.ParseViewParams(graphArg(p.Args), deps.DefaultMode)
					if err != nil {
						return nil, err
					}
					v, err := deps.Views.Mount(p.Context, params, true)
					if err != nil {
						return nil, err
					}
					return viewToGraph(v), nil
				},
			},
			"unmountView": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Unmount a view",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.Views.Unmount(p.Args["id"].(string)); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// graphArg adapts GraphQL arguments to the query-style parameter reader.
func graphArg(args map[string]interface{}) func(string) string {
	return func(key string) string {
		switch v := args[key].(type) {
		case string:
			return v
		case int:
			return fmt.Sprint(v)
		default:
			return ""
		}
	}
}

func viewToGraph(v *domain.View) map[string]interface{} {
	sources := make([]map[string]interface{}, 0, len(v.Params.Sources))
	for _, s := range v.Params.Sources {
		sources = append(sources, map[string]interface{}{
			"id":    s.ID,
			"kind":  string(s.Kind),
			"url":   s.URL,
			"color": s.ColorTag,
			"codes": s.Codes,
		})
	}

	m := map[string]interface{}{
		"id":               v.ID,
		"state":            string(v.State),
		"runs":             v.Runs,
		"mode":             string(v.Params.Mode),
		"label":            v.Params.Label,
		"interval_seconds": int(v.Params.Interval / time.Second),
		"created_at":       v.CreatedAt.Format(time.RFC3339),
		"sources":          sources,
	}
	if r := v.LastRun; r != nil {
		m["last_run"] = map[string]interface{}{
			"generation":     int(r.Generation),
			"started_at":     r.StartedAt.Format(time.RFC3339Nano),
			"duration_ms":    float64(r.Duration) / float64(time.Millisecond),
			"failed_sources": r.FailedSources,
			"source_counts":  r.SourceCounts,
			"decoded":        r.Decoded,
			"decode_errors":  r.DecodeErrors,
			"markers":        r.Markers,
			"displayed":      r.Displayed,
			"skipped":        r.Skipped,
		}
	}
	return m
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
