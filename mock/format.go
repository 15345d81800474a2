package mock

import (
	"fmt"
	"strings"

	"github.com/gofiber/utils"
)

// Protocol is written on the status line of formatted mock files
const Protocol = "HTTP/1.1"

// Format renders a Definition back into mock file text
func Format(def *Definition) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %d %s\n", Protocol, def.Status, utils.StatusMessage(def.Status))
	for _, header := range def.Headers {
		for _, value := range header.Values {
			fmt.Fprintf(&b, "%s: %s\n", header.Name, value)
		}
	}
	b.WriteString("\n")
	b.WriteString(def.Body)

	return b.String()
}

// NotMocked is the response for requests no mock file matches
func NotMocked() *Response {
	return &Response{
		Status: 404,
		Body:   NotMockedBody,
	}
}
