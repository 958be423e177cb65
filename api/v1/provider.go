package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/launchforge-api/config"
	"github.com/launchforge-api/dto"
)

// GetProviderStatus godoc
// @Summary Provider credential requirements
// @Description Reports which configuration keys each provider needs and which are currently set (names only, never values)
// @Tags providers
// @Produce json
// @Success 200 {array} dto.ProviderStatus
// @Router /providers [get]
func GetProviderStatus(c *gin.Context) {
	requirements := config.ProviderRequirements()
	statuses := make([]dto.ProviderStatus, 0, len(requirements))

	for _, requirement := range requirements {
		status := dto.ProviderStatus{
			Provider:   requirement.Provider,
			Label:      requirement.Label,
			Core:       requirement.Core,
			Configured: requirement.Configured(config.LookupEnv),
		}
		for _, key := range requirement.Required {
			status.Keys = append(status.Keys, dto.ProviderKeyStatus{
				Key:      key,
				Required: true,
				Set:      isSet(key),
			})
		}
		for _, key := range requirement.Optional {
			status.Keys = append(status.Keys, dto.ProviderKeyStatus{
				Key:      key,
				Required: false,
				Set:      isSet(key),
			})
		}
		statuses = append(statuses, status)
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   statuses,
	})
}

func isSet(key string) bool {
	value, ok := config.LookupEnv(key)
	return ok && value != ""
}
