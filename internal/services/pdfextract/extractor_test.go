package pdfextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
	"github.com/antigravity-dev/ragforge/internal/models"
)

func TestBuildTextElements_EmptyTextProducesNoElements(t *testing.T) {
	assert.Nil(t, buildTextElements([]textRun{{content: "   "}}))
	assert.Nil(t, buildTextElements(nil))
}

func TestBuildTextElements_NonEmptyTextProducesOneElementPerRun(t *testing.T) {
	bbox := models.BoundingBox{X: 12, Y: 34}
	els := buildTextElements([]textRun{{content: "hello world", bbox: bbox}})
	assert.Len(t, els, 1)
	assert.Equal(t, models.PDFElementText, els[0].Kind)
	assert.Equal(t, "hello world", els[0].Text.Content)
	assert.Equal(t, bbox, els[0].Text.BBox)
}

func TestBuildTextElements_SkipsBlankRuns(t *testing.T) {
	els := buildTextElements([]textRun{
		{content: "  "},
		{content: "real text", bbox: models.BoundingBox{X: 1, Y: 2}},
	})
	assert.Len(t, els, 1)
	assert.Equal(t, "real text", els[0].Text.Content)
}

func TestParseContentStreamRuns_TracksTextMatrixPositions(t *testing.T) {
	stream := []byte(`BT /F1 12 Tf 100 700 Td (Hello) Tj 0 -14 TD (World) Tj ET`)
	runs := parseContentStreamRuns(stream)
	require.Len(t, runs, 2)

	assert.Equal(t, "Hello", runs[0].content)
	assert.Equal(t, 100.0, runs[0].bbox.X)
	assert.Equal(t, 700.0, runs[0].bbox.Y)

	assert.Equal(t, "World", runs[1].content)
	assert.Equal(t, 100.0, runs[1].bbox.X)
	assert.Equal(t, 686.0, runs[1].bbox.Y)
	assert.NotEqual(t, runs[0].bbox, runs[1].bbox, "distinct text lines must get distinct positions")
}

func TestParseContentStreamRuns_HandlesTJArrayOperator(t *testing.T) {
	stream := []byte(`BT /F1 10 Tf 50 50 Td [(Hel) -20 (lo)] TJ ET`)
	runs := parseContentStreamRuns(stream)
	require.Len(t, runs, 1)
	assert.Equal(t, "Hello", runs[0].content)
	assert.Equal(t, 50.0, runs[0].bbox.X)
	assert.Equal(t, 50.0, runs[0].bbox.Y)
}

func TestParseContentStreamRuns_NoTextOperatorsProducesNoRuns(t *testing.T) {
	assert.Nil(t, parseContentStreamRuns([]byte(`q 1 0 0 1 0 0 cm Q`)))
}

func TestResolveMaxImages_NegativeUsesDefault(t *testing.T) {
	assert.Equal(t, 10, resolveMaxImages(-1, 10))
}

func TestResolveMaxImages_ExplicitZeroDisablesRatherThanDefaulting(t *testing.T) {
	assert.Equal(t, 0, resolveMaxImages(0, 10))
}

func TestResolveMaxImages_PositiveValuePassesThrough(t *testing.T) {
	assert.Equal(t, 3, resolveMaxImages(3, 10))
}

func TestShouldRasterPage_OffModeNeverRasterizes(t *testing.T) {
	e := &Extractor{}
	opts := interfaces.PDFExtractOptions{RasterMode: models.RasterModeOff}
	assert.False(t, e.shouldRasterPage(opts, 1, "", []rawImage{{}}))
}

func TestShouldRasterPage_ManualModeOnlyListedPages(t *testing.T) {
	e := &Extractor{}
	opts := interfaces.PDFExtractOptions{RasterMode: models.RasterModeManual, RasterPages: []int{2, 5}}
	assert.True(t, e.shouldRasterPage(opts, 2, "", nil))
	assert.True(t, e.shouldRasterPage(opts, 5, "", nil))
	assert.False(t, e.shouldRasterPage(opts, 3, "", nil))
}

func TestShouldRasterPage_AutoModeRasterizesOnlyWhenNoTextAndHasImages(t *testing.T) {
	e := &Extractor{}
	opts := interfaces.PDFExtractOptions{RasterMode: models.RasterModeAuto}

	assert.False(t, e.shouldRasterPage(opts, 1, "has text", []rawImage{{}}))
	assert.False(t, e.shouldRasterPage(opts, 1, "", nil))
	assert.True(t, e.shouldRasterPage(opts, 1, "", []rawImage{{}}))
}

func TestSurroundingText_OrdersByDistanceAndTruncates(t *testing.T) {
	img := rawImage{bbox: models.BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}}
	elements := []models.PDFElement{
		{Kind: models.PDFElementText, Text: &models.TextElement{Content: "far", BBox: models.BoundingBox{X: 1000, Y: 1000}}},
		{Kind: models.PDFElementText, Text: &models.TextElement{Content: "near", BBox: models.BoundingBox{X: 5, Y: 5}}},
		{Kind: models.PDFElementImage}, // non-text elements are skipped
	}

	got := surroundingText(img, elements)
	assert.Equal(t, "near far ", got)
}

func TestSurroundingText_NoTextElementsReturnsEmpty(t *testing.T) {
	img := rawImage{}
	assert.Equal(t, "", surroundingText(img, nil))
}
