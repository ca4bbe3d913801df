package http

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/sakibstark11/geoplotter/internal/adapters/surface"
	"github.com/sakibstark11/geoplotter/internal/adapters/valkey"
	"github.com/sakibstark11/geoplotter/internal/core/domain"
	"github.com/sakibstark11/geoplotter/internal/core/usecases"
	"github.com/sakibstark11/geoplotter/internal/pkg/geohash"
	"github.com/sakibstark11/geoplotter/internal/pkg/geospatial"
	"github.com/sakibstark11/geoplotter/internal/pkg/metrics"
)

const geoJSONContentType = "application/geo+json"

// viewParamsFromQuery parses the query-string view configuration.
func viewParamsFromQuery(c *fiber.Ctx, deps *Dependencies) (domain.ViewParams, error) {
	return usecases.ParseViewParams(func(key string) string { return c.Query(key) }, deps.DefaultMode)
}

// CreateViewHandler mounts a view from query parameters. wait=true holds the
// response until the first run has finished.
func CreateViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		params, err := viewParamsFromQuery(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}

		view, err := deps.Views.Mount(c.UserContext(), params, c.QueryBool("wait", false))
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Location("/v1/views/" + view.ID)
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// ListViewsHandler returns mounted views, oldest first.
func ListViewsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		views, pg := paginate(c, deps.Views.List(), 50, 200)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: views, Pagination: pg})
	}
}

// GetViewHandler returns a view with its last run.
func GetViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Views.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(view)
	}
}

// UpdateViewHandler replaces a view's parameters.
func UpdateViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		params, err := viewParamsFromQuery(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}

		view, err := deps.Views.Update(c.UserContext(), c.Params("id"), params, c.QueryBool("wait", false))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(view)
	}
}

// DeleteViewHandler unmounts a view.
func DeleteViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Views.Unmount(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ViewSurfaceHandler returns everything the view's surface currently holds.
func ViewSurfaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Views.Snapshot(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(snap)
	}
}

// ViewSourceHandler returns one source of a view as a GeoJSON
// FeatureCollection. Views mounted on another replica are served from the
// cache mirror.
func ViewSourceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, sourceID := c.Params("id"), c.Params("sourceId")

		fc, err := deps.Views.SourceData(id, sourceID)
		if err == nil {
			data, err := json.Marshal(fc)
			if err != nil {
				return errInternal(c, err.Error())
			}
			c.Set(fiber.HeaderContentType, geoJSONContentType)
			return c.Send(data)
		}
		if !errors.Is(err, domain.ErrViewNotFound) || deps.Cache == nil {
			return errFromDomain(c, err)
		}

		data, cerr := deps.Cache.Get(c.UserContext(), surface.MirrorKey(id, sourceID))
		if cerr != nil {
			if !errors.Is(cerr, valkey.ErrMiss) {
				LoggerFromCtx(c.UserContext()).Warn("surface mirror read failed", "view", id, "source", sourceID, "error", cerr)
			}
			metrics.CacheMisses.WithLabelValues("view_source").Inc()
			return errFromDomain(c, err)
		}
		metrics.CacheHits.WithLabelValues("view_source").Inc()

		c.Set(fiber.HeaderContentType, geoJSONContentType)
		return c.Send(data)
	}
}

// ViewReadyHandler reports the view's widget as ready, for widgets that do
// not hold a websocket open.
func ViewReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Views.MarkReady(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type decodeResponse struct {
	Code    string           `json:"code"`
	Center  domain.GeoPoint  `json:"center"`
	Bounds  domain.Bounds    `json:"bounds"`
	WidthM  float64          `json:"width_m"`
	HeightM float64          `json:"height_m"`
	AreaM2  float64          `json:"area_m2"`
	Polygon *geojson.Feature `json:"polygon"`
}

// DecodeHandler decodes a single geohash.
func DecodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := strings.ToLower(strings.TrimSpace(c.Params("code")))
		b, err := geohash.DecodeBounds(code)
		if err != nil {
			return errFromDomain(c, err)
		}
		w, h := geohash.CellSize(b)

		poly := geojson.NewFeature(usecases.BoundsPolygon(b))
		poly.Properties["code"] = code

		return c.JSON(decodeResponse{
			Code:    code,
			Center:  geohash.Center(b),
			Bounds:  b,
			WidthM:  w,
			HeightM: h,
			AreaM2:  geospatial.RectArea(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon),
			Polygon: poly,
		})
	}
}

// EncodeHandler returns the geohash of a point.
func EncodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 1000)
		lon := c.QueryFloat("lon", 1000)
		precision := c.QueryInt("precision", 8)

		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return errBadRequest(c, "lat must be -90..90 and lon -180..180")
		}
		if precision < 1 || precision > geohash.MaxPrecision {
			return errBadRequest(c, "precision must be between 1 and 12")
		}
		return c.JSON(fiber.Map{"code": geohash.Encode(lat, lon, precision)})
	}
}

// MapConfigHandler returns the widget bootstrap configuration.
func MapConfigHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Map)
	}
}
