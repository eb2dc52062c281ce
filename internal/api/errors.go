package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lift-maintenance-backend/internal/civdate"
	"lift-maintenance-backend/internal/sched"
)

// respondError translates scheduling errors into HTTP statuses. Input
// problems map to 400, missing records to 404 and state conflicts to 409;
// anything unrecognized is a 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sched.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, civdate.ErrInvalidDate),
		errors.Is(err, sched.ErrPastDate),
		errors.Is(err, sched.ErrInvalidSlot),
		errors.Is(err, sched.ErrSlotEligibility),
		errors.Is(err, sched.ErrUnqualifiedEngineer):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sched.ErrImmutableState),
		errors.Is(err, sched.ErrInvalidTransition),
		errors.Is(err, sched.ErrDuplicateWorkOrder),
		errors.Is(err, sched.ErrNoAvailableSlot),
		errors.Is(err, sched.ErrMoveConflict),
		errors.Is(err, sched.ErrCycleViolation):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
