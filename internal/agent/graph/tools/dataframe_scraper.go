package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	errx "github.com/inventory-assistant/server/internal/core/error"
	"github.com/inventory-assistant/server/internal/dataset"
	"github.com/inventory-assistant/server/internal/metrics"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

const (
	ToolDataframeScraper = "dataframe_scraper"

	// ErrorPrefix starts every failure the tool reports as text.
	ErrorPrefix = "Error in dataframe_scraper: "
)

// Reasoner answers a question over a table.
type Reasoner interface {
	Answer(ctx context.Context, t *dataset.Table, question string) (string, error)
}

type DataframeScraperInput struct {
	Query string `json:"query"`
}

// DataframeScraper is the retrieval tool. It reloads the dataset on every
// call and delegates the question to a Reasoner.
//
// Configuration errors (unknown runtime) are returned as Go errors. Every
// other failure is returned as text starting with ErrorPrefix and a nil error.
type DataframeScraper struct {
	loader   dataset.Loader
	reasoner Reasoner
}

var _ tool.InvokableTool = (*DataframeScraper)(nil)

func NewDataframeScraper(loader dataset.Loader, reasoner Reasoner) (*DataframeScraper, error) {
	if loader == nil || reasoner == nil {
		return nil, fmt.Errorf("dataframe scraper needs a loader and a reasoner")
	}
	return &DataframeScraper{loader: loader, reasoner: reasoner}, nil
}

func (d *DataframeScraper) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: ToolDataframeScraper,
		Desc: "Uses a language model agent to answer a query about the inventory data. " +
			"This tool lets you interact with the tabular inventory data stored in a spreadsheet. " +
			"Returns the result of the query as text.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "A natural language question or instruction about the data.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun decodes {"query": "..."} and runs Query. Malformed arguments
// are a Go error.
func (d *DataframeScraper) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in DataframeScraperInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
		return "", fmt.Errorf("decode %s arguments: %w", ToolDataframeScraper, err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("%s: query is required", ToolDataframeScraper)
	}
	return d.Query(ctx, in.Query)
}

func (d *DataframeScraper) Query(ctx context.Context, query string) (string, error) {
	t, err := d.loader.Load(ctx)
	if err != nil {
		if errors.Is(err, errx.ErrUnknownRuntime) {
			return "", errx.WrapConfig(err)
		}
		return d.reportFailure(query, err), nil
	}

	answer, err := d.reasoner.Answer(ctx, t, query)
	if err != nil {
		return d.reportFailure(query, err), nil
	}
	return answer, nil
}

func (d *DataframeScraper) reportFailure(query string, err error) string {
	metrics.RetrievalToolErrors.Inc()
	msg := ErrorPrefix + err.Error()
	logx.Error().Err(err).Str("tool", ToolDataframeScraper).Str("query", query).Msg("retrieval tool failed")
	return msg
}
