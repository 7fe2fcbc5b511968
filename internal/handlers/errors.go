package handlers

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"assistantmemory/internal/middleware"
	"assistantmemory/internal/storage"
)

const (
	// maxTagsPerQuery bounds the tag filter of list requests
	maxTagsPerQuery = 20
)

// storageError maps a service error to a JSON error response. entity names
// the record in 404s ("Task"), action names the operation in 500s
// ("update task").
func storageError(c *fiber.Ctx, err error, entity, action string) error {
	switch storage.KindOf(err) {
	case storage.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": entity + " not found",
		})
	case storage.KindConflict:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": entity + " already exists",
		})
	case storage.KindValidation:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": errorDetail(err),
		})
	case storage.KindUnavailable:
		log.Printf("⚠️  [STORAGE] Unavailable during %s: %v", action, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Storage temporarily unavailable",
		})
	}

	log.Printf("❌ Failed to %s: %v", action, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to " + action,
	})
}

// errorDetail returns the underlying message of a storage error
func errorDetail(err error) string {
	var se *storage.Error
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body",
	})
}

// requireUser returns the authenticated user id or writes a 401
func requireUser(c *fiber.Ctx) (string, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
		return "", false
	}
	return userID, true
}

// listParams reads the pagination and tag parameters shared by list
// endpoints. Unparseable numbers fall back to the storage defaults.
func listParams(c *fiber.Ctx) (limit, skip int, tags []string) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	skip, _ = strconv.Atoi(c.Query("skip"))
	return limit, skip, parseTags(c.Query("tags"))
}

// parseTags splits a comma-separated tag list
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) > maxTagsPerQuery {
		tags = tags[:maxTagsPerQuery]
	}
	return tags
}
