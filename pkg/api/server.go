// Package api exposes the registry's read operations over HTTP. The
// presentation layer is elsewhere; this boundary only serves data.
package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hktransit/hktransit/pkg/favourites"
	"github.com/hktransit/hktransit/pkg/objects"
	"github.com/hktransit/hktransit/pkg/registry"
	"github.com/hktransit/hktransit/pkg/util"
)

type server struct {
	registry *registry.Registry
}

// SetupServer serves the registry boundary on listen until the listener
// fails.
func SetupServer(reg *registry.Registry, listen string) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	s := &server{registry: reg}
	group := webApp.Group("/registry")

	group.Get("/state", s.getState)

	group.Get("/routes/search", s.findRoutes)
	group.Get("/routes/next-chars", s.nextChars)
	group.Get("/routes/nearby", s.nearbyRoutes)
	group.Get("/routes/:routeKey/eta", s.getEta)

	group.Get("/favourites", s.listFavourites)
	group.Put("/favourites/:slot", s.setFavourite)
	group.Delete("/favourites/:slot", s.clearFavourite)
	group.Get("/favourites/:slot/resolve", s.resolveFavourite)

	return webApp.Listen(listen)
}

// decodeRouteKey unescapes the path segment; route keys carry "+" which
// clients must percent-encode.
func decodeRouteKey(raw string) (string, error) {
	return url.PathUnescape(raw)
}

func badRequest(c *fiber.Ctx, message string) error {
	c.SendStatus(fiber.StatusBadRequest)
	return c.JSON(fiber.Map{
		"error": message,
	})
}

func (s *server) getState(c *fiber.Ctx) error {
	response := fiber.Map{
		"state": s.registry.State().String(),
	}
	if snapshot := s.registry.Snapshot(); snapshot != nil {
		response["checksum"] = snapshot.Checksum
		response["routes"] = len(snapshot.Sheet.RouteList)
		response["stops"] = len(snapshot.Sheet.StopList)
	}
	return c.JSON(response)
}

func (s *server) findRoutes(c *fiber.Ctx) error {
	text := c.Query("q")
	if text == "" {
		return badRequest(c, "A route number query must be provided")
	}
	exact := c.QueryBool("exact")

	entries, err := s.registry.FindRoutes(c.Context(), text, exact, nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"entries": entries,
	})
}

func (s *server) nextChars(c *fiber.Ctx) error {
	result, err := s.registry.NextChars(c.Context(), c.Query("prefix"))
	if err != nil {
		return err
	}

	characters := make([]string, len(result.Characters))
	for i, character := range result.Characters {
		characters[i] = string(character)
	}
	return c.JSON(fiber.Map{
		"characters":    characters,
		"hasExactMatch": result.HasExactMatch,
	})
}

func (s *server) nearbyRoutes(c *fiber.Ctx) error {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return badRequest(c, "lat must be a valid coordinate")
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return badRequest(c, "lng must be a valid coordinate")
	}

	excluded := map[string]bool{}
	if exclude := c.Query("exclude"); exclude != "" {
		for _, routeNumber := range util.RemoveDuplicateStrings(strings.Split(exclude, ","), nil) {
			excluded[routeNumber] = true
		}
	}

	result, err := s.registry.NearbyRoutes(c.Context(), lat, lng, excluded, c.QueryBool("interchange"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *server) getEta(c *fiber.Ctx) error {
	routeKey, err := decodeRouteKey(c.Params("routeKey"))
	if err != nil {
		return badRequest(c, "routeKey is not valid")
	}

	route, err := s.registry.FindRouteByKey(c.Context(), routeKey)
	if err == registry.ErrRouteNotFound {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Route key does not exist in the current snapshot",
		})
	}
	if err != nil {
		return err
	}

	stopID := c.Query("stop")
	if stopID == "" {
		return badRequest(c, "A stop id must be provided")
	}
	stopIndex := c.QueryInt("index")

	operator := route.FirstOperator()
	if name := c.Query("co"); name != "" {
		operator = objects.OperatorFrom(name)
	}

	result, err := s.registry.GetEta(c.Context(), stopID, stopIndex, operator, route)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *server) listFavourites(c *fiber.Ctx) error {
	store := s.registry.Favourites()

	slots := fiber.Map{}
	for _, slot := range store.UsedSlots() {
		if favourite, ok := store.Favourite(slot); ok {
			slots[strconv.Itoa(slot)] = favourite
		}
	}
	return c.JSON(fiber.Map{
		"favourites": slots,
	})
}

func (s *server) setFavourite(c *fiber.Ctx) error {
	slot, err := c.ParamsInt("slot")
	if err != nil {
		return badRequest(c, "slot must be an integer")
	}

	var favourite objects.FavouriteRouteStop
	if err := c.BodyParser(&favourite); err != nil {
		return badRequest(c, "Request body is not a valid favourite")
	}
	if favourite.Route == nil || favourite.Stop == nil {
		return badRequest(c, "A favourite requires both a route and a stop")
	}

	if err := s.registry.Favourites().SetFavourite(slot, &favourite); err != nil {
		return badRequest(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *server) clearFavourite(c *fiber.Ctx) error {
	slot, err := c.ParamsInt("slot")
	if err != nil {
		return badRequest(c, "slot must be an integer")
	}
	if err := s.registry.Favourites().ClearFavourite(slot); err != nil {
		return badRequest(c, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *server) resolveFavourite(c *fiber.Ctx) error {
	slot, err := c.ParamsInt("slot")
	if err != nil {
		return badRequest(c, "slot must be an integer")
	}

	var origin favourites.OriginProvider
	if c.Query("lat") != "" && c.Query("lng") != "" {
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
		if latErr != nil || lngErr != nil {
			return badRequest(c, "lat and lng must be valid coordinates")
		}
		origin = func() (objects.Coordinates, bool) {
			return objects.NewCoordinates(lat, lng), true
		}
	}

	resolved, ok, err := s.registry.ResolveFavourite(c.Context(), slot, origin)
	if err != nil {
		return err
	}
	if !ok {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Favourite slot is empty or no longer resolvable",
		})
	}
	return c.JSON(fiber.Map{
		"stopId": resolved.StopID,
		"index":  resolved.Index,
		"stop":   resolved.Stop,
	})
}
