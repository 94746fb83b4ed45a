// Package vision はGoogle Cloud Vision APIを使用したシーン分類クライアントを提供します。
package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"sort"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"

	"photo_backend/internal/feature/sceneinsight/domain"
	"photo_backend/internal/feature/sceneinsight/domain/entity"
	"photo_backend/internal/feature/sceneinsight/usecase"
)

// DefaultMaxResults はラベル検出で要求する最大件数です。
const DefaultMaxResults = 5

// annotator はVision APIクライアントのうち使用するメソッドです。
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionSceneClassifier はGoogle Cloud Vision APIのラベル検出でシーンを分類します。
type VisionSceneClassifier struct {
	client     annotator
	maxResults int32
}

// VisionSceneClassifierがClassifierを実装していることをコンパイル時に検証します。
var _ usecase.Classifier = (*VisionSceneClassifier)(nil)

// NewVisionSceneClassifier はADCを使用してVisionSceneClassifierの新しいインスタンスを生成します。
func NewVisionSceneClassifier(ctx context.Context, maxResults int) (*VisionSceneClassifier, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return newVisionSceneClassifier(client, maxResults), nil
}

func newVisionSceneClassifier(client annotator, maxResults int) *VisionSceneClassifier {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &VisionSceneClassifier{client: client, maxResults: int32(maxResults)}
}

// Close はVision APIクライアントを解放します。
func (v *VisionSceneClassifier) Close() error {
	return v.client.Close()
}

// Classify は正規化済みテンソルをPNGに戻してラベル検出を行います。
func (v *VisionSceneClassifier) Classify(ctx context.Context, tensor entity.Tensor) (*entity.Classification, error) {
	img, err := tensor.Image()
	if err != nil {
		return nil, domain.InferenceError("vision", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, domain.InferenceError("vision", fmt.Errorf("failed to encode thumbnail: %w", err))
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: buf.Bytes()},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: v.maxResults},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, domain.InferenceError("vision", fmt.Errorf("vision API request failed: %w", err))
	}
	if len(resp.GetResponses()) == 0 {
		return nil, domain.InferenceError("vision", errors.New("vision API returned no responses"))
	}
	if e := resp.Responses[0].GetError(); e != nil {
		return nil, domain.InferenceError("vision", fmt.Errorf("vision API error: %s", e.GetMessage()))
	}

	cls, err := classificationFromLabels(resp.Responses[0].GetLabelAnnotations())
	if err != nil {
		return nil, domain.InferenceError("vision", err)
	}
	return cls, nil
}

// classificationFromLabels はラベル注釈をスコアの高い順に並べ、分類結果に変換します。
func classificationFromLabels(labels []*visionpb.EntityAnnotation) (*entity.Classification, error) {
	candidates := make([]entity.Prediction, 0, len(labels))
	for _, l := range labels {
		if l.GetDescription() == "" {
			continue
		}
		candidates = append(candidates, entity.Prediction{
			Label:      l.GetDescription(),
			Confidence: l.GetScore(),
		})
	}
	if len(candidates) == 0 {
		return nil, errors.New("no labels detected")
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return &entity.Classification{
		Label:      candidates[0].Label,
		Confidence: candidates[0].Confidence,
		Candidates: candidates,
	}, nil
}
