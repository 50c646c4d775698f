package http

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/scheduler"
)

type countEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func sortedCounts(m map[string]int) []countEntry {
	out := make([]countEntry, 0, len(m))
	for k, v := range m {
		out = append(out, countEntry{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// buildSchema creates the GraphQL schema wired to the scheduler and the store.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	countType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Count",
		Fields: graphql.Fields{
			"key":   &graphql.Field{Type: graphql.String},
			"count": &graphql.Field{Type: graphql.Int},
		},
	})

	placeStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PlaceStats",
		Fields: graphql.Fields{
			"total":      &graphql.Field{Type: graphql.Int},
			"withImages": &graphql.Field{Type: graphql.Int},
			"imagePercentage": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(domain.PlaceStats).ImagePercentage(), nil
				},
			},
			"byCategory": &graphql.Field{
				Type: graphql.NewList(countType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return sortedCounts(p.Source.(domain.PlaceStats).ByCategory), nil
				},
			},
			"bySource": &graphql.Field{
				Type: graphql.NewList(countType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return sortedCounts(p.Source.(domain.PlaceStats).BySource), nil
				},
			},
		},
	})

	jobRunType := graphql.NewObject(graphql.ObjectConfig{
		Name: "JobRun",
		Fields: graphql.Fields{
			"trigger": &graphql.Field{Type: graphql.String},
			"error":   &graphql.Field{Type: graphql.String},
			"startedAt": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return formatTime(p.Source.(*domain.JobRun).StartedAt), nil
				},
			},
			"finishedAt": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return formatTime(p.Source.(*domain.JobRun).FinishedAt), nil
				},
			},
			"durationMs": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return int(p.Source.(*domain.JobRun).Duration().Milliseconds()), nil
				},
			},
		},
	})

	jobType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Job",
		Fields: graphql.Fields{
			"name": &graphql.Field{Type: graphql.String},
			"schedule": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(scheduler.JobInfo).Spec, nil
				},
			},
			"running": &graphql.Field{Type: graphql.Boolean},
			"nextRun": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if next := p.Source.(scheduler.JobInfo).Next; next != nil {
						return formatTime(*next), nil
					}
					return nil, nil
				},
			},
			"lastRun": &graphql.Field{
				Type: jobRunType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if run := p.Source.(scheduler.JobInfo).LastRun; run != nil {
						return run, nil
					}
					return nil, nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"placeStats": &graphql.Field{
				Type: placeStatsType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Places.Stats(p.Context)
				},
			},
			"jobs": &graphql.Field{
				Type: graphql.NewList(jobType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Jobs.Jobs(), nil
				},
			},
			"job": &graphql.Field{
				Type: jobType,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name, _ := p.Args["name"].(string)
					for _, j := range deps.Jobs.Jobs() {
						if j.Name == name {
							return j, nil
						}
					}
					return nil, domain.ErrUnknownJob
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return newError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
