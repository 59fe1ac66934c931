package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/resilience"
	"github.com/nomadai/concierge/internal/session"
)

const scratchVideo = "video_tour.task"

// MediaConfig points the media tools at an OpenAI-compatible generation
// API: /images/generations, /videos/generations and /async-result/{id}.
type MediaConfig struct {
	BaseURL    string
	APIKey     string
	ImageModel string
	ImageSize  string
	VideoModel string
}

// Enabled reports whether an endpoint and key are configured
func (c MediaConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

func (c MediaConfig) withDefaults() MediaConfig {
	if c.ImageModel == "" {
		c.ImageModel = "cogview-4"
	}
	if c.ImageSize == "" {
		c.ImageSize = "1024x1024"
	}
	if c.VideoModel == "" {
		c.VideoModel = "cogvideox"
	}
	return c
}

func (c MediaConfig) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func (c MediaConfig) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.APIKey}
}

func mediaClient(client *resilience.RetryClient) *resilience.RetryClient {
	if client == nil {
		return resilience.NewRetryClient(resilience.DefaultPolicy(resilience.DependencyTools))
	}
	return client
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// NewImagePreviewTool generates a preview image of a destination. The
// outbound call goes through the retry envelope.
func NewImagePreviewTool(cfg MediaConfig, client *resilience.RetryClient) Tool {
	cfg = cfg.withDefaults()
	client = mediaClient(client)

	return &Definition{
		ToolName:   "image_preview",
		Summary:    "Generate a preview image of a destination or attraction. Pass a vivid visual description (under 100 words).",
		Concurrent: true,
		Schema: object(map[string]interface{}{
			"prompt": prop("string", "Visual description of the scene"),
		}, "prompt"),
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			prompt := args.String("prompt", "")
			if prompt == "" {
				return nil, fmt.Errorf("prompt is required")
			}

			body, err := json.Marshal(imageRequest{Model: cfg.ImageModel, Prompt: prompt, Size: cfg.ImageSize})
			if err != nil {
				return nil, err
			}
			resp, err := client.PostJSON(ctx, cfg.endpoint("/images/generations"), body, cfg.headers())
			if err != nil {
				return nil, err
			}

			var out imageResponse
			if err := json.Unmarshal(resp.Body, &out); err != nil {
				return nil, apperrors.NewResponseError("image generation", err.Error())
			}
			if len(out.Data) == 0 || out.Data[0].URL == "" {
				return nil, apperrors.NewResponseError("image generation", "no image returned")
			}
			return map[string]interface{}{
				"image_url": out.Data[0].URL,
				"model":     cfg.ImageModel,
			}, nil
		},
	}
}

// VideoTask is an asynchronous tour video generation tracked per session
type VideoTask struct {
	ID        string    `json:"task_id"`
	Prompt    string    `json:"prompt"`
	Status    string    `json:"status"` // processing, completed or failed
	VideoURL  string    `json:"video_url,omitempty"`
	CoverURL  string    `json:"cover_image_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type videoRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type videoResult struct {
	ID         string `json:"id"`
	TaskStatus string `json:"task_status"`
	Videos     []struct {
		URL      string `json:"url"`
		CoverURL string `json:"cover_image_url"`
	} `json:"video_result"`
}

// videoStatus maps the provider's task status onto ours
func videoStatus(s string) string {
	switch strings.ToUpper(s) {
	case "SUCCESS":
		return "completed"
	case "PROCESSING", "":
		return "processing"
	}
	return "failed"
}

// NewVideoTourTool starts a tour video generation and reports on it.
// Generation takes minutes, so 'start' returns a task id kept in the
// session and 'status' polls it.
func NewVideoTourTool(cfg MediaConfig, client *resilience.RetryClient) Tool {
	cfg = cfg.withDefaults()
	client = mediaClient(client)

	start := func(ctx context.Context, prompt string) (interface{}, error) {
		if prompt == "" {
			return nil, fmt.Errorf("prompt is required to start a video")
		}
		body, err := json.Marshal(videoRequest{Model: cfg.VideoModel, Prompt: prompt})
		if err != nil {
			return nil, err
		}
		resp, err := client.PostJSON(ctx, cfg.endpoint("/videos/generations"), body, cfg.headers())
		if err != nil {
			return nil, err
		}

		var out videoResult
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return nil, apperrors.NewResponseError("video generation", err.Error())
		}
		if out.ID == "" {
			return nil, apperrors.NewResponseError("video generation", "no task id returned")
		}

		task := &VideoTask{ID: out.ID, Prompt: prompt, Status: videoStatus(out.TaskStatus), UpdatedAt: time.Now().UTC()}
		session.ScratchFrom(ctx).Set(scratchVideo, task)
		return map[string]interface{}{
			"task_id": task.ID,
			"status":  task.Status,
			"message": "The tour video is being generated. It usually takes a few minutes; ask for its status later.",
		}, nil
	}

	status := func(ctx context.Context, taskID string) (interface{}, error) {
		scratch := session.ScratchFrom(ctx)
		var task *VideoTask
		if cur, ok := scratch.Get(scratchVideo); ok {
			task, _ = cur.(*VideoTask)
		}
		if taskID == "" && task != nil {
			taskID = task.ID
		}
		if taskID == "" {
			return "No tour video has been started in this conversation.", nil
		}
		if task != nil && task.ID == taskID && task.Status != "processing" {
			return *task, nil
		}

		resp, err := client.GetJSON(ctx, cfg.endpoint("/async-result/"+url.PathEscape(taskID)), cfg.headers())
		if err != nil {
			return nil, err
		}
		var out videoResult
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return nil, apperrors.NewResponseError("video generation", err.Error())
		}

		next := VideoTask{ID: taskID, Status: videoStatus(out.TaskStatus), UpdatedAt: time.Now().UTC()}
		if task != nil && task.ID == taskID {
			next.Prompt = task.Prompt
		}
		if next.Status == "completed" {
			if len(out.Videos) == 0 || out.Videos[0].URL == "" {
				return nil, apperrors.NewResponseError("video generation", "completed task has no video")
			}
			next.VideoURL = out.Videos[0].URL
			next.CoverURL = out.Videos[0].CoverURL
		}
		scratch.Set(scratchVideo, &next)
		return next, nil
	}

	return &Definition{
		ToolName: "video_tour",
		Summary:  "Create a short tour video of a route or destination. Use action 'start' with a cinematic scene description (under 150 words), then 'status' to fetch the video link once it is ready.",
		Schema: object(map[string]interface{}{
			"action":  enumProp("start or status", "start", "status"),
			"prompt":  prop("string", "Scene description: camera movement, scenery, atmosphere, landmarks"),
			"task_id": prop("string", "Task to check; defaults to this conversation's latest video"),
		}, "action"),
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			if args.String("action", "status") == "start" {
				return start(ctx, args.String("prompt", ""))
			}
			return status(ctx, args.String("task_id", ""))
		},
	}
}
