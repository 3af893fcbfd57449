package video

import "fmt"

// Tier is one fixed quality variant of the rendition ladder.
type Tier string

const (
	TierLow  Tier = "low"
	TierMid  Tier = "mid"
	TierHigh Tier = "high"
)

// Profile holds the encoder settings for one tier.
type Profile struct {
	Scale       string
	BitrateKbps int
	MaxrateKbps int
	BufsizeKbps int
}

var tierProfiles = map[Tier]Profile{
	TierLow:  {Scale: "854:480", BitrateKbps: 1500, MaxrateKbps: 1750, BufsizeKbps: 3500},
	TierMid:  {Scale: "1280:720", BitrateKbps: 3500, MaxrateKbps: 4000, BufsizeKbps: 8000},
	TierHigh: {Scale: "1920:1080", BitrateKbps: 6500, MaxrateKbps: 7500, BufsizeKbps: 15000},
}

// Tiers returns the ladder in transcoding order, lowest first.
func Tiers() []Tier {
	return []Tier{TierLow, TierMid, TierHigh}
}

// ParseTier validates a client-supplied tier name.
func ParseTier(raw string) (Tier, error) {
	tier := Tier(raw)
	if _, ok := tierProfiles[tier]; !ok {
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, raw)
	}
	return tier, nil
}

// Profile returns the encoder settings for the tier.
func (t Tier) Profile() Profile {
	return tierProfiles[t]
}

// ManifestName is the playlist file name inside an asset's output directory.
func (t Tier) ManifestName() string {
	return string(t) + ".m3u8"
}

// SegmentPattern is the ffmpeg segment file pattern for the tier.
func (t Tier) SegmentPattern() string {
	return string(t) + "_%03d.ts"
}
