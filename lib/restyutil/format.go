package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(&out, "%s: %s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err)
	}
	return string(raw)
}

func formatExchange(res *resty.Response) string {
	var b strings.Builder

	req := res.Request.RawRequest
	if req != nil {
		fmt.Fprintf(&b, "---- REQUEST ----\n\n%s %s\n\n%s\n\n%s\n\n",
			req.Method, req.URL.String(),
			formatHeaders(req.Header), formatRequestBody(req))
	}
	fmt.Fprintf(&b, "---- RESPONSE ----\n\n%s\n\n%s\n\n%s\n",
		res.Status(), formatHeaders(res.Header()), string(res.Body()))
	return b.String()
}
