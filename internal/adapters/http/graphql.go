package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	lngLatType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LngLat",
		Fields: graphql.Fields{
			"lng": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{Type: graphql.Float},
		},
	})

	lngLatInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "LngLatInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"lng": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	cameraType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Camera",
		Fields: graphql.Fields{
			"session_id": &graphql.Field{Type: graphql.String},
			"center":     &graphql.Field{Type: lngLatType},
			"zoom":       &graphql.Field{Type: graphql.Float},
			"bearing":    &graphql.Field{Type: graphql.Float},
			"pitch":      &graphql.Field{Type: graphql.Float},
			"width":      &graphql.Field{Type: graphql.Int},
			"height":     &graphql.Field{Type: graphql.Int},
			"min_zoom":   &graphql.Field{Type: graphql.Float},
			"max_zoom":   &graphql.Field{Type: graphql.Float},
			"moving":     &graphql.Field{Type: graphql.Boolean},
			"zooming":    &graphql.Field{Type: graphql.Boolean},
			"rotating":   &graphql.Field{Type: graphql.Boolean},
			"pitching":   &graphql.Field{Type: graphql.Boolean},
			"updated_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "View",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"center":     &graphql.Field{Type: lngLatType},
			"zoom":       &graphql.Field{Type: graphql.Float},
			"bearing":    &graphql.Field{Type: graphql.Float},
			"pitch":      &graphql.Field{Type: graphql.Float},
			"created_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        cameraType,
				Description: "Current camera of a live session",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Cameras.State(p.Context, p.Args["id"].(string))
				},
			},
			"view": &graphql.Field{
				Type:        viewType,
				Description: "Get a saved view by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Views.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"views": &graphql.Field{
				Type:        graphql.NewList(viewType),
				Description: "List saved views, newest first",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					views, _, err := deps.Views.List(p.Context, p.Args["limit"].(int), p.Args["offset"].(int))
					return views, err
				},
			},
		},
	})

	sessionArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createSession": &graphql.Field{
				Type:        cameraType,
				Description: "Start a camera session",
				Args: graphql.FieldConfigArgument{
					"width":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"height":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"center":  &graphql.ArgumentConfig{Type: lngLatInput},
					"zoom":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"bearing": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"pitch":   &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					opts := domain.SessionOptions{
						Width:   p.Args["width"].(int),
						Height:  p.Args["height"].(int),
						Zoom:    p.Args["zoom"].(float64),
						Bearing: p.Args["bearing"].(float64),
						Pitch:   p.Args["pitch"].(float64),
					}
					if c := lngLatArg(p.Args, "center"); c != nil {
						opts.Center = *c
					}
					return deps.Cameras.Create(p.Context, opts)
				},
			},
			"jumpTo": &graphql.Field{
				Type:        cameraType,
				Description: "Move the camera without animation",
				Args:        cameraArgs(sessionArg, lngLatInput),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Cameras.JumpTo(p.Context, p.Args["session"].(string), cameraOptionsArg(p.Args), nil)
				},
			},
			"easeTo": &graphql.Field{
				Type:        cameraType,
				Description: "Ease the camera to a target",
				Args:        cameraArgs(sessionArg, lngLatInput),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var anim domain.AnimationOptions
					if ms, ok := p.Args["duration_ms"].(int); ok {
						anim.Duration = domain.Duration(msDuration(ms))
					}
					return deps.Cameras.EaseTo(p.Context, p.Args["session"].(string), cameraOptionsArg(p.Args), anim, nil)
				},
			},
			"flyTo": &graphql.Field{
				Type:        cameraType,
				Description: "Fly the camera to a target along the optimal path",
				Args:        cameraArgs(sessionArg, lngLatInput),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					opts := domain.FlyToOptions{CameraOptions: cameraOptionsArg(p.Args)}
					if ms, ok := p.Args["duration_ms"].(int); ok {
						opts.Duration = domain.Duration(msDuration(ms))
					}
					return deps.Cameras.FlyTo(p.Context, p.Args["session"].(string), opts, nil)
				},
			},
			"flyToView": &graphql.Field{
				Type:        cameraType,
				Description: "Fly the camera to a saved view",
				Args: graphql.FieldConfigArgument{
					"session": sessionArg,
					"view":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Cameras.FlyToView(p.Context, p.Args["session"].(string), p.Args["view"].(string))
				},
			},
			"stop": &graphql.Field{
				Type:        cameraType,
				Description: "Interrupt the running transition",
				Args:        graphql.FieldConfigArgument{"session": sessionArg},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Cameras.Stop(p.Context, p.Args["session"].(string))
				},
			},
			"saveView": &graphql.Field{
				Type:        viewType,
				Description: "Save a session's current camera as a view",
				Args: graphql.FieldConfigArgument{
					"session": sessionArg,
					"name":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Views.SaveFromSession(p.Context, deps.Cameras, p.Args["session"].(string), p.Args["name"].(string))
				},
			},
			"deleteView": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Delete a saved view",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.Views.Delete(p.Context, p.Args["id"].(string)); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func cameraArgs(session *graphql.ArgumentConfig, lngLat *graphql.InputObject) graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"session":     session,
		"center":      &graphql.ArgumentConfig{Type: lngLat},
		"zoom":        &graphql.ArgumentConfig{Type: graphql.Float},
		"bearing":     &graphql.ArgumentConfig{Type: graphql.Float},
		"pitch":       &graphql.ArgumentConfig{Type: graphql.Float},
		"around":      &graphql.ArgumentConfig{Type: lngLat},
		"duration_ms": &graphql.ArgumentConfig{Type: graphql.Int},
	}
}

func cameraOptionsArg(args map[string]interface{}) domain.CameraOptions {
	var opts domain.CameraOptions
	opts.Center = lngLatArg(args, "center")
	opts.Around = lngLatArg(args, "around")
	if v, ok := args["zoom"].(float64); ok {
		opts.Zoom = domain.Float(v)
	}
	if v, ok := args["bearing"].(float64); ok {
		opts.Bearing = domain.Float(v)
	}
	if v, ok := args["pitch"].(float64); ok {
		opts.Pitch = domain.Float(v)
	}
	return opts
}

func lngLatArg(args map[string]interface{}, key string) *domain.LngLat {
	m, ok := args[key].(map[string]interface{})
	if !ok {
		return nil
	}
	lng, _ := m["lng"].(float64)
	lat, _ := m["lat"].(float64)
	return &domain.LngLat{Lng: lng, Lat: lat}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
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
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		c.Set("Cache-Control", "no-store")
		return c.JSON(result)
	}
}
