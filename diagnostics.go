package noirgraph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soundprediction/noirgraph/pkg/driver"
	"github.com/soundprediction/noirgraph/pkg/embedder"
	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/report"
	"github.com/soundprediction/noirgraph/pkg/types"
)

func (c *Client) databaseDetails() []string {
	db := c.config.Database
	name := db.Database
	if name == "" {
		name = "(default)"
	}
	return []string{
		"Provider: " + report.Code(string(c.store.Provider())),
		"URI: " + report.Code(db.URI),
		"User: " + report.Code(db.Username),
		"Database: " + report.Code(name),
	}
}

// TestDatabase checks that the graph database is reachable and answers.
func (c *Client) TestDatabase(ctx context.Context) StageResult {
	start := time.Now()
	err := c.store.VerifyConnectivity(ctx)
	elapsed := time.Since(start).Milliseconds()
	details := c.databaseDetails()

	if err == nil {
		details = append(details, fmt.Sprintf("Elapsed: %d ms", elapsed))
		return StageResult{
			OK:      true,
			Message: "Neo4j connection successful",
			Report: report.Markdown("Neo4j connection successful",
				"Nothing went wrong. The driver connected and the test query returned the expected result.",
				nil, nil, details),
		}
	}

	details = append(details, "Error: "+report.Code(err.Error()))
	var title, what string
	var causes, fixes []string
	switch driver.ClassifyError(err) {
	case driver.ErrorClassAuth:
		title = "Authentication failed"
		what = "Neo4j rejected the username or password."
		causes = []string{
			"Wrong username or password.",
			"The URI points at a different Neo4j instance.",
			"The user has no access to the target database.",
		}
		fixes = []string{
			"Double-check `NEO4J_USERNAME` and `NEO4J_PASSWORD`, watching for stray spaces.",
			"Log into Neo4j Browser with the same credentials.",
			"If you set a database name, make sure the user may access it.",
		}
	case driver.ErrorClassUnavailable:
		title = "Cannot reach Neo4j server"
		what = "The driver could not connect to the server."
		causes = []string{
			"Neo4j is not running.",
			"Wrong host or port in the URI (Bolt listens on 7687, not 7474).",
			"A firewall blocks the Bolt port.",
			"A `neo4j://` routing URI is used against a single instance.",
		}
		fixes = []string{
			"Start Neo4j and confirm it listens on the Bolt port.",
			"Use a URI like `bolt://host:7687`.",
			"Test the port with `nc -vz host 7687`.",
			"Try `bolt://` instead of `neo4j://` when not using a cluster.",
		}
	case driver.ErrorClassConfiguration:
		title = "Driver configuration error"
		what = "The driver configuration is invalid."
		causes = []string{
			"The URI scheme has a typo, e.g. `boltt://`.",
			"TLS settings do not match the server.",
		}
		fixes = []string{
			"Use `bolt://`, `bolt+s://`, `neo4j://` or `neo4j+s://` followed by host and port.",
			"For Aura or other TLS endpoints use a `+s` scheme.",
		}
	case driver.ErrorClassClient:
		title = "Neo4j rejected the request"
		what = "Neo4j received the request but rejected it."
		causes = []string{
			"The configured database does not exist.",
			"The user lacks permission on that database.",
		}
		fixes = []string{
			"Check the database name or leave it empty to use the default.",
			"Check the user's roles in Neo4j.",
		}
	case driver.ErrorClassDatabase:
		title = "Neo4j database error"
		what = "Neo4j hit an internal problem while processing the request."
		causes = []string{
			"The database is starting up, recovering or overloaded.",
			"The server is short on memory or disk.",
		}
		fixes = []string{
			"Check the Neo4j server logs.",
			"Retry after a short wait.",
		}
	default:
		title = "Unexpected error while testing the Neo4j connection"
		what = "The connection test failed with an error outside the usual categories."
		causes = []string{
			"Missing configuration values.",
			"A driver and server version mismatch.",
		}
		fixes = []string{
			"Check that the URI, user and password are set.",
			"Inspect the error below and the server logs.",
		}
	}
	return StageResult{Message: title, Report: report.Markdown(title, what, causes, fixes, details)}
}

// TestLanguageModel sends a short prompt to each configured model.
func (c *Client) TestLanguageModel(ctx context.Context) StageResult {
	models := []struct {
		role   string
		client nlp.Client
	}{
		{"extraction", c.models.Extraction},
		{"resolution", c.models.Resolution},
	}

	var details []string
	for i, m := range models {
		if i > 0 && m.client == models[0].client {
			continue
		}
		cctx, cancel := c.withTimeout(ctx)
		resp, err := m.client.Chat(cctx, []types.Message{
			nlp.NewUserMessage("Answer with 'Connected.'"),
		})
		cancel()
		if err != nil {
			title := fmt.Sprintf("The %s model did not answer", m.role)
			return StageResult{Message: title, Report: report.Markdown(title,
				"The language model request failed.",
				[]string{
					"`OPENAI_API_KEY` is missing or invalid.",
					"The model name is wrong or not available to this key.",
					"The endpoint rate limited the request or timed out.",
				},
				[]string{
					"Check `OPENAI_API_KEY`, `LARGE_MODEL_NAME` and `SMALL_MODEL_NAME`.",
					"Raise `nlp.timeout` or retry later.",
				},
				append(details, "Error: "+report.Code(err.Error())))}
		}
		model := resp.Model
		if model == "" {
			model = m.role
		}
		details = append(details, fmt.Sprintf("%s: %s answered %s", m.role, report.Code(model), report.Code(strings.TrimSpace(resp.Content))))
	}

	return StageResult{
		OK:      true,
		Message: "Completion connection successful",
		Report:  report.Markdown("Completion connection successful", "Nothing went wrong.", nil, nil, details),
	}
}

// TestEmbedding embeds a short string and checks the vector size.
func (c *Client) TestEmbedding(ctx context.Context) StageResult {
	cctx, cancel := c.withTimeout(embedder.WithTaskType(ctx, embedder.TaskTypeQuery))
	vec, err := c.embedder.EmbedSingle(cctx, "Test embedding")
	cancel()

	want := c.embedder.Dimensions()
	details := []string{fmt.Sprintf("Expected dimensions: %d", want)}
	switch {
	case err != nil:
		return StageResult{Message: "Embedding failed", Report: report.Markdown("Embedding failed",
			"The embedding request failed.",
			[]string{"The API key is missing or invalid.", "The embedding model name is wrong."},
			[]string{"Check `OPENAI_API_KEY` and `embedding.model`."},
			append(details, "Error: "+report.Code(err.Error())))}
	case len(vec) == 0:
		return StageResult{Message: "Embedding failed. No values returned.", Report: report.Markdown("Embedding returned no values",
			"The embedding request succeeded but returned an empty vector.",
			[]string{"The endpoint does not support the requested model."},
			[]string{"Try another `embedding.model`."},
			details)}
	case len(vec) != want:
		msg := fmt.Sprintf("Embedding has %d dimensions, expected %d", len(vec), want)
		return StageResult{Message: msg, Report: report.Markdown(msg,
			"Vectors of this size cannot be stored in the vector indexes.",
			[]string{"`embedding.dimensions` does not match the model."},
			[]string{"Set `embedding.dimensions` to the model size and recreate the indexes."},
			details)}
	}
	return StageResult{
		OK:      true,
		Message: fmt.Sprintf("Embedding successful. Embedding length: %d", len(vec)),
		Report:  report.Markdown("Embedding successful", "Nothing went wrong.", nil, nil, details),
	}
}

// ClearGraph deletes every node and edge, after a passing database test.
// It cannot be undone.
func (c *Client) ClearGraph(ctx context.Context) StageResult {
	if res := c.TestDatabase(ctx); !res.OK {
		res.Message = "Cannot clear the database because the connection test failed: " + res.Message
		return res
	}
	if err := c.store.ClearAll(ctx); err != nil {
		return clearFailed(err, c.databaseDetails())
	}
	c.logger.Warn("Cleared graph")
	return StageResult{
		OK:      true,
		Message: "Neo4j database cleared successfully",
		Report:  report.Markdown("Neo4j database cleared successfully", "Nothing went wrong. The database was cleared.", nil, nil, nil),
	}
}

// ClearDocument deletes one document with its chunks, statements and
// entities. Items holds the number of deleted nodes.
func (c *Client) ClearDocument(ctx context.Context, documentID string) StageResult {
	deleted, err := c.store.ClearDocument(ctx, documentID)
	if err != nil {
		return clearFailed(err, append(c.databaseDetails(), "Document: "+report.Code(documentID)))
	}
	c.logger.Warn("Cleared document", "document_id", documentID, "deleted", deleted)
	msg := fmt.Sprintf("Deleted document %s (%d nodes)", documentID, deleted)
	return StageResult{
		OK:      true,
		Message: msg,
		Items:   int(deleted),
		Report:  report.Markdown(msg, "Nothing went wrong.", nil, nil, nil),
	}
}

func clearFailed(err error, details []string) StageResult {
	return StageResult{
		Message: "Failed to clear Neo4j database: " + err.Error(),
		Report: report.Markdown("Failed to clear Neo4j database",
			"An error occurred while deleting data.",
			[]string{
				"The connection was lost after the test but before deletion.",
				"The user lacks permission to delete data.",
				"The server is unstable, e.g. out of memory.",
			},
			[]string{
				"Check the error below.",
				"Make sure the Neo4j user may delete data.",
				"Check the Neo4j server logs.",
			},
			append(details, "Error: "+report.Code(err.Error()))),
	}
}
