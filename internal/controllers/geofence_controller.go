package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"

	"geo_attend/internal/geo"
	"geo_attend/internal/models"
)

// geofenceInput accepts the center either as latitude/longitude or as a
// GeoJSON Point string.
type geofenceInput struct {
	ID           string          `json:"id"`
	Name         string          `json:"name" binding:"required"`
	Latitude     *float64        `json:"latitude"`
	Longitude    *float64        `json:"longitude"`
	Center       string          `json:"center"`
	RadiusMeters float64         `json:"radius_meters" binding:"required"`
	ZoneType     models.ZoneType `json:"zone_type"`
	Address      string          `json:"address"`
	Disabled     bool            `json:"disabled"`
	OpensAt      string          `json:"opens_at"`
	ClosesAt     string          `json:"closes_at"`
	AllowedDays  []time.Weekday  `json:"allowed_days"`
}

func (in geofenceInput) toGeofence() (models.Geofence, error) {
	g := models.Geofence{
		ID:           in.ID,
		Name:         in.Name,
		RadiusMeters: in.RadiusMeters,
		ZoneType:     in.ZoneType,
		Address:      in.Address,
		Disabled:     in.Disabled,
		OpensAt:      in.OpensAt,
		ClosesAt:     in.ClosesAt,
		AllowedDays:  in.AllowedDays,
	}
	if g.ZoneType == "" {
		g.ZoneType = models.ZoneOffice
	}
	switch {
	case in.Center != "":
		center, err := parsePoint(in.Center)
		if err != nil {
			return models.Geofence{}, err
		}
		g.Center = center
	case in.Latitude != nil && in.Longitude != nil:
		g.Center = geo.Coordinate{Latitude: *in.Latitude, Longitude: *in.Longitude}
	default:
		return models.Geofence{}, errors.New("center or latitude/longitude is required")
	}
	return g, nil
}

// parsePoint reads a GeoJSON Point.
func parsePoint(raw string) (geo.Coordinate, error) {
	var g geom.T
	if err := gjson.Unmarshal([]byte(raw), &g); err != nil {
		return geo.Coordinate{}, err
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return geo.Coordinate{}, errors.New("center must be a GeoJSON Point")
	}
	return geo.FromPoint(p), nil
}

func (a *API) CreateGeofence(c *gin.Context) {
	var input geofenceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	g, err := input.toGeofence()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid center: " + err.Error()})
		return
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	created, err := a.Registry.Create(g)
	if err != nil {
		respondError(c, err)
		return
	}
	if a.Geofences != nil {
		if err := a.Geofences.SaveGeofence(c.Request.Context(), &created); err != nil {
			_ = a.Registry.Delete(created.ID)
			respondError(c, err)
			return
		}
	}

	logrus.WithFields(logrus.Fields{
		"geofence_id": created.ID,
		"radius":      created.RadiusMeters,
	}).Info("Geofence created.")
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (a *API) UpdateGeofence(c *gin.Context) {
	var input geofenceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	g, err := input.toGeofence()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid center: " + err.Error()})
		return
	}
	g.ID = c.Param("id")

	previous, err := a.Registry.Get(g.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	updated, err := a.Registry.Update(g)
	if err != nil {
		respondError(c, err)
		return
	}
	if a.Geofences != nil {
		if err := a.Geofences.SaveGeofence(c.Request.Context(), &updated); err != nil {
			_, _ = a.Registry.Update(previous)
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (a *API) DeleteGeofence(c *gin.Context) {
	id := c.Param("id")
	if _, err := a.Registry.Get(id); err != nil {
		respondError(c, err)
		return
	}
	if a.Geofences != nil {
		if err := a.Geofences.DeleteGeofence(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := a.Registry.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) GetGeofence(c *gin.Context) {
	g, err := a.Registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": g})
}

func (a *API) ListGeofences(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": a.Registry.List()})
}

// NearestGeofence reports the geofence whose center is closest to lat/lng.
func (a *API) NearestGeofence(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})
		return
	}
	point := geo.Coordinate{Latitude: lat, Longitude: lng}
	if err := geo.Validate(point); err != nil {
		respondError(c, err)
		return
	}

	g, distance, err := a.Registry.Nearest(point)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":            g,
		"distance_meters": distance,
		"is_inside":       distance <= g.RadiusMeters,
	})
}

// GeofencesGeoJSON exports every geofence as a FeatureCollection of center
// points carrying their radius.
func (a *API) GeofencesGeoJSON(c *gin.Context) {
	fences := a.Registry.List()
	fc := gjson.FeatureCollection{Features: make([]*gjson.Feature, 0, len(fences))}
	for _, g := range fences {
		fc.Features = append(fc.Features, &gjson.Feature{
			ID:       g.ID,
			Geometry: geo.Point(g.Center),
			Properties: map[string]interface{}{
				"name":          g.Name,
				"radius_meters": g.RadiusMeters,
				"zone_type":     g.ZoneType,
				"address":       g.Address,
			},
		})
	}

	body, err := fc.MarshalJSON()
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}
