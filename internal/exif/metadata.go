package exif

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	exifTimeLayout    = "2006:01:02 15:04:05"
	displayTimeLayout = "2006-01-02 15:04:05"
	cameraSeparator   = " · "
)

// Metadata is what the upload form is pre-filled with.
type Metadata struct {
	TakenTime string
	Camera    string
}

// Empty reports whether neither field was found.
func (m Metadata) Empty() bool {
	return m.TakenTime == "" && m.Camera == ""
}

// fields holds raw tag values before they are folded into Metadata.
type fields struct {
	DateTime string
	Make     string
	Model    string
	Lens     string
	FNumber  float64
	Exposure *big.Rat
	ISO      int
	Focal    float64
}

func (f fields) metadata() Metadata {
	return Metadata{
		TakenTime: normalizeTakenTime(f.DateTime),
		Camera:    describeCamera(f),
	}
}

// normalizeTakenTime rewrites the EXIF "YYYY:MM:DD HH:MM:SS" form with dashes.
// Values in any other shape pass through unchanged; no timezone is applied.
func normalizeTakenTime(raw string) string {
	raw = cleanString(raw)
	if raw == "" {
		return ""
	}
	if len(raw) >= len(exifTimeLayout) {
		if ts, err := time.Parse(exifTimeLayout, raw[:len(exifTimeLayout)]); err == nil {
			return ts.Format(displayTimeLayout) + raw[len(exifTimeLayout):]
		}
	}
	return raw
}

// describeCamera joins body, lens and exposure settings, e.g.
// "Canon EOS R5 · RF24-70mm F2.8 L IS USM · f/2.8 1/250s ISO 100 50mm".
func describeCamera(f fields) string {
	parts := make([]string, 0, 3)
	if body := cameraBody(cleanString(f.Make), cleanString(f.Model)); body != "" {
		parts = append(parts, body)
	}
	if lens := cleanString(f.Lens); lens != "" {
		parts = append(parts, lens)
	}
	settings := make([]string, 0, 4)
	if f.FNumber > 0 {
		settings = append(settings, "f/"+formatDecimal(f.FNumber))
	}
	if exposure := formatExposure(f.Exposure); exposure != "" {
		settings = append(settings, exposure)
	}
	if f.ISO > 0 {
		settings = append(settings, "ISO "+strconv.Itoa(f.ISO))
	}
	if f.Focal > 0 {
		settings = append(settings, formatDecimal(f.Focal)+"mm")
	}
	if len(settings) > 0 {
		parts = append(parts, strings.Join(settings, " "))
	}
	return strings.Join(parts, cameraSeparator)
}

// cameraBody drops the make when the model already starts with it
// ("Canon" + "Canon EOS R5" -> "Canon EOS R5").
func cameraBody(maker, model string) string {
	switch {
	case maker == "":
		return model
	case model == "":
		return maker
	case strings.HasPrefix(strings.ToLower(model), strings.ToLower(maker)):
		return model
	default:
		return maker + " " + model
	}
}

func formatExposure(r *big.Rat) string {
	if r == nil || r.Sign() <= 0 {
		return ""
	}
	if r.IsInt() {
		return r.Num().String() + "s"
	}
	if r.Num().IsInt64() && r.Num().Int64() == 1 {
		return r.String() + "s"
	}
	f, _ := r.Float64()
	return formatDecimal(f) + "s"
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func cleanString(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

// parseExposure accepts "1/250", "0.004", "2" and similar exiftool renderings.
func parseExposure(raw string) *big.Rat {
	raw = strings.TrimSuffix(cleanString(raw), "s")
	if raw == "" {
		return nil
	}
	r, ok := new(big.Rat).SetString(raw)
	if !ok {
		return nil
	}
	return r
}

// parseLeadingFloat reads the number at the start of values like "50.0 mm".
func parseLeadingFloat(raw string) float64 {
	raw = cleanString(raw)
	end := 0
	for end < len(raw) && (raw[end] == '.' || (raw[end] >= '0' && raw[end] <= '9')) {
		end++
	}
	v, err := strconv.ParseFloat(raw[:end], 64)
	if err != nil {
		return 0
	}
	return v
}
