package respond

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

// Error represents a standard structure for error responses.
type Error struct {
	Message string `json:"message"`
}

// JSON sends a JSON response with the specified HTTP status code and data.
// It uses the Gin context to encode the data into JSON format.
func JSON(c *ginext.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// OK sends a 200 OK JSON response with the given body.
func OK(c *ginext.Context, body interface{}) {
	JSON(c, http.StatusOK, body)
}

// Created sends a 201 Created JSON response with the given body.
func Created(c *ginext.Context, body interface{}) {
	JSON(c, http.StatusCreated, body)
}

// Accepted sends a 202 Accepted JSON response with the given body.
func Accepted(c *ginext.Context, body interface{}) {
	JSON(c, http.StatusAccepted, body)
}

// Fail sends an error JSON response with the specified HTTP status code.
// The error message is wrapped in an Error struct.
func Fail(c *ginext.Context, status int, err error) {
	JSON(c, status, Error{Message: err.Error()})
}
