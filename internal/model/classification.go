package model

// Classification is the structured output of the AI classifier for one
// business. Fit scores are ordinals on a 0-5 scale, mobility-first per
// product priority. Values are immutable once written; a re-classification
// replaces the whole struct.
type Classification struct {
	IndustryBucket string `json:"industry_bucket" validate:"required,max=80"`

	MobilityFit int  `json:"mobility_fit" validate:"min=0,max=5"`
	SecurityFit int  `json:"security_fit" validate:"min=0,max=5"`
	VoIPFit     int  `json:"voip_fit" validate:"min=0,max=5"`
	FleetAttach bool `json:"fleet_attach"`

	SignalAfterHours bool `json:"signal_after_hours"`
	SignalDispatch   bool `json:"signal_dispatch"`
	SignalFieldWork  bool `json:"signal_field_work"`

	Rationale string `json:"rationale" validate:"required,max=400"`
}
