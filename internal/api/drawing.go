package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-trip/internal/draw"
	"github.com/joeblew999/plat-trip/internal/feature"
)

// DrawingHandler exposes the drawing protocol over REST. Each endpoint
// maps one pointer or tool event onto the drawing controller.
type DrawingHandler struct {
	controller *draw.Controller
	bus        *feature.EventBus
}

// NewDrawingHandler creates a drawing handler.
func NewDrawingHandler(controller *draw.Controller, bus *feature.EventBus) *DrawingHandler {
	return &DrawingHandler{controller: controller, bus: bus}
}

// RegisterRoutes registers the drawing protocol routes.
func (h *DrawingHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/drawing/session", h.GetSession, huma.OperationTags("drawing"))
	huma.Post(api, "/api/v1/drawing/tool", h.SelectTool, huma.OperationTags("drawing"))
	huma.Post(api, "/api/v1/drawing/click", h.Click, huma.OperationTags("drawing"))
	huma.Post(api, "/api/v1/drawing/move", h.Move, huma.OperationTags("drawing"))
	huma.Post(api, "/api/v1/drawing/finish", h.Finish, huma.OperationTags("drawing"))
	huma.Post(api, "/api/v1/drawing/undo", h.Undo, huma.OperationTags("drawing"))
	huma.Post(api, "/api/v1/drawing/cancel", h.Cancel, huma.OperationTags("drawing"))
}

// SessionBody is the wire form of the in-progress drawing session.
type SessionBody struct {
	Tool         string      `json:"tool" doc:"Active drawing tool"`
	State        string      `json:"state" doc:"Protocol state: idle, armed or accumulating"`
	Vertices     [][]float64 `json:"vertices,omitempty" doc:"Accumulated vertices ([lng, lat])"`
	RectStart    []float64   `json:"rect_start,omitempty" doc:"First rectangle corner"`
	CircleCenter []float64   `json:"circle_center,omitempty" doc:"Circle center"`
	Preview      []float64   `json:"preview,omitempty" doc:"Last pointer position"`
}

func toSessionBody(s draw.Session) SessionBody {
	body := SessionBody{
		Tool:  string(s.Tool),
		State: string(s.State()),
	}
	for _, v := range s.Vertices {
		body.Vertices = append(body.Vertices, []float64{v[0], v[1]})
	}
	if s.RectStart != nil {
		body.RectStart = []float64{s.RectStart[0], s.RectStart[1]}
	}
	if s.CircleCenter != nil {
		body.CircleCenter = []float64{s.CircleCenter[0], s.CircleCenter[1]}
	}
	if s.Preview != nil {
		body.Preview = []float64{s.Preview[0], s.Preview[1]}
	}
	return body
}

// SessionOutput wraps a drawing session response.
type SessionOutput struct {
	Body SessionBody
}

func (h *DrawingHandler) GetSession(ctx context.Context, input *struct{}) (*SessionOutput, error) {
	return &SessionOutput{Body: toSessionBody(h.controller.Session())}, nil
}

// ToolInput selects the active drawing tool.
type ToolInput struct {
	Body struct {
		Tool string `json:"tool" required:"true" enum:"none,marker,polyline,polygon,rectangle,circle" doc:"Tool to arm"`
	}
}

func (h *DrawingHandler) SelectTool(ctx context.Context, input *ToolInput) (*SessionOutput, error) {
	if err := h.controller.SelectTool(draw.Tool(input.Body.Tool)); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	return &SessionOutput{Body: toSessionBody(h.controller.Session())}, nil
}

// PointInput is a pointer event on the map, in geographic coordinates.
type PointInput struct {
	Body struct {
		Lng    float64 `json:"lng" required:"true" minimum:"-180" maximum:"180" doc:"Longitude"`
		Lat    float64 `json:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude"`
		Double bool    `json:"double,omitempty" doc:"Treat as a double-click (finish gesture for vertex tools)"`
	}
}

// ClickOutput returns the session after a pointer event plus the
// committed feature when the event completed a shape.
type ClickOutput struct {
	Body struct {
		Session   SessionBody  `json:"session"`
		Committed *FeatureBody `json:"committed,omitempty" doc:"Feature committed by this event, if any"`
	}
}

func (h *DrawingHandler) clickResult(f *feature.Feature, err error) (*ClickOutput, error) {
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to commit feature: " + err.Error())
	}

	resp := &ClickOutput{}
	resp.Body.Session = toSessionBody(h.controller.Session())
	if f != nil {
		body := toFeatureBody(*f)
		resp.Body.Committed = &body
		if h.bus != nil {
			h.bus.Publish(feature.Event{Resource: "features", Action: "created", ID: f.ID})
		}
	}
	return resp, nil
}

func (h *DrawingHandler) Click(ctx context.Context, input *PointInput) (*ClickOutput, error) {
	p := orb.Point{input.Body.Lng, input.Body.Lat}
	if input.Body.Double {
		f, err := h.controller.DoubleClick(ctx, p)
		return h.clickResult(f, err)
	}
	f, err := h.controller.Click(ctx, p)
	return h.clickResult(f, err)
}

func (h *DrawingHandler) Move(ctx context.Context, input *PointInput) (*SessionOutput, error) {
	h.controller.Move(orb.Point{input.Body.Lng, input.Body.Lat})
	return &SessionOutput{Body: toSessionBody(h.controller.Session())}, nil
}

func (h *DrawingHandler) Finish(ctx context.Context, input *struct{}) (*ClickOutput, error) {
	f, err := h.controller.Finish(ctx)
	return h.clickResult(f, err)
}

func (h *DrawingHandler) Undo(ctx context.Context, input *struct{}) (*SessionOutput, error) {
	h.controller.UndoVertex()
	return &SessionOutput{Body: toSessionBody(h.controller.Session())}, nil
}

func (h *DrawingHandler) Cancel(ctx context.Context, input *struct{}) (*SessionOutput, error) {
	h.controller.Cancel()
	return &SessionOutput{Body: toSessionBody(h.controller.Session())}, nil
}
