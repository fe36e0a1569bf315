package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trip/internal/feature"
)

// FeatureHandler serves the feature CRUD routes.
type FeatureHandler struct {
	store feature.Store
	bus   *feature.EventBus
}

// NewFeatureHandler creates a feature handler.
func NewFeatureHandler(store feature.Store, bus *feature.EventBus) *FeatureHandler {
	return &FeatureHandler{store: store, bus: bus}
}

// RegisterRoutes registers the feature CRUD routes.
func (h *FeatureHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/features", h.ListFeatures, huma.OperationTags("features"))
	huma.Post(api, "/api/v1/features", h.CreateFeature, huma.OperationTags("features"))
	huma.Get(api, "/api/v1/features/{id}", h.GetFeature, huma.OperationTags("features"))
	huma.Patch(api, "/api/v1/features/{id}", h.UpdateFeature, huma.OperationTags("features"))
	huma.Delete(api, "/api/v1/features/{id}", h.DeleteFeature, huma.OperationTags("features"))
	huma.Post(api, "/api/v1/features/batch", h.BatchUpdate, huma.OperationTags("features"))
}

func (h *FeatureHandler) publish(action, id string) {
	if h.bus != nil {
		h.bus.Publish(feature.Event{Resource: "features", Action: action, ID: id})
	}
}

// FeatureListOutput wraps a feature list response.
type FeatureListOutput struct {
	Body struct {
		Features []FeatureBody `json:"features"`
		Count    int           `json:"count" doc:"Number of features"`
	}
}

func (h *FeatureHandler) ListFeatures(ctx context.Context, input *struct{}) (*FeatureListOutput, error) {
	features, err := h.store.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list features: " + err.Error())
	}

	resp := &FeatureListOutput{}
	resp.Body.Features = make([]FeatureBody, 0, len(features))
	for _, f := range features {
		resp.Body.Features = append(resp.Body.Features, toFeatureBody(f))
	}
	resp.Body.Count = len(features)
	return resp, nil
}

// CreateFeatureInput is the request to create a feature directly,
// bypassing the drawing protocol.
type CreateFeatureInput struct {
	Body struct {
		Geometry   any       `json:"geometry" required:"true" doc:"GeoJSON geometry"`
		Properties PropsBody `json:"properties" required:"true"`
	}
}

// FeatureOutput wraps a single feature response.
type FeatureOutput struct {
	Body FeatureBody
}

func (h *FeatureHandler) CreateFeature(ctx context.Context, input *CreateFeatureInput) (*FeatureOutput, error) {
	geometry, err := decodeGeometry(input.Body.Geometry)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	props, err := toProps(input.Body.Properties)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid properties: " + err.Error())
	}

	f, err := h.store.Create(ctx, geometry, props)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to create feature: " + err.Error())
	}

	h.publish("created", f.ID)
	return &FeatureOutput{Body: toFeatureBody(f)}, nil
}

func (h *FeatureHandler) GetFeature(ctx context.Context, input *IDInput) (*FeatureOutput, error) {
	f, err := h.store.Get(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("Feature not found: " + input.ID)
	}
	return &FeatureOutput{Body: toFeatureBody(f)}, nil
}

// UpdateFeatureInput is a partial feature update.
type UpdateFeatureInput struct {
	ID   string `path:"id" doc:"Feature ID"`
	Body feature.UpdateFields
}

func (h *FeatureHandler) UpdateFeature(ctx context.Context, input *UpdateFeatureInput) (*FeatureOutput, error) {
	if _, err := h.store.Get(ctx, input.ID); err != nil {
		return nil, huma.Error404NotFound("Feature not found: " + input.ID)
	}

	f, err := h.store.Update(ctx, input.ID, input.Body)
	if err != nil {
		return nil, huma.Error400BadRequest("Failed to update feature: " + err.Error())
	}

	h.publish("updated", f.ID)
	return &FeatureOutput{Body: toFeatureBody(f)}, nil
}

func (h *FeatureHandler) DeleteFeature(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.store.Delete(ctx, input.ID); err != nil {
		return nil, huma.Error404NotFound("Feature not found: " + input.ID)
	}

	h.publish("deleted", input.ID)
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Feature deleted: " + input.ID}}, nil
}

// BatchUpdateInput applies partial updates to several features at once.
type BatchUpdateInput struct {
	Body struct {
		Items []feature.BatchItem `json:"items" required:"true" minItems:"1" doc:"Updates to apply atomically"`
	}
}

func (h *FeatureHandler) BatchUpdate(ctx context.Context, input *BatchUpdateInput) (*struct{ Body MessageBody }, error) {
	if err := h.store.BatchUpdate(ctx, input.Body.Items); err != nil {
		return nil, huma.Error400BadRequest("Batch update failed: " + err.Error())
	}

	h.publish("updated", "")
	resp := &struct{ Body MessageBody }{}
	resp.Body.Message = "Batch update applied"
	return resp, nil
}
