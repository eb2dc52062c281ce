package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"lift-maintenance-backend/internal/model"
)

// ZoneResponse represents the API response for a single zone.
type ZoneResponse struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	TotalEquipment int64  `json:"totalEquipment"`
}

// GetZones handles the GET /api/zones request.
func GetZones(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var zones []model.Zone
		if err := db.Order("code").Find(&zones).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve zones"})
			return
		}

		type aggRow struct {
			ZoneID         int64
			TotalEquipment int64
		}
		var aggs []aggRow
		if err := db.
			Model(&model.Equipment{}).
			Select("zone_id as zone_id, COUNT(*) as total_equipment").
			Group("zone_id").
			Scan(&aggs).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate equipment"})
			return
		}

		aggMap := make(map[int64]int64, len(aggs))
		for _, a := range aggs {
			aggMap[a.ZoneID] = a.TotalEquipment
		}

		responses := make([]ZoneResponse, 0, len(zones))
		for _, z := range zones {
			responses = append(responses, ZoneResponse{
				ID: z.ID, Code: z.Code, Name: z.Name,
				TotalEquipment: aggMap[z.ID],
			})
		}
		c.JSON(http.StatusOK, responses)
	}
}
