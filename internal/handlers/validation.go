package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/accountd/pkg/errors"
	"github.com/charlesng35/accountd/pkg/response"
	appValidator "github.com/charlesng35/accountd/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation
// rules. When validation fails, an error response is written and false is
// returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return false
	}

	return true
}

// accountID parses the :id path parameter. A malformed id is reported as a
// bad request before any lookup happens.
func accountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.NewBadRequest("account id must be a positive integer"))
		return 0, false
	}
	return id, true
}
