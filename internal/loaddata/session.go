package loaddata

// Key correlates an externally triggered load request with its eventual
// resolved dataset. Multiple image IDs can belong to one key over time, but
// a key maps to at most one session record.
type Key string

// SessionRecord accumulates fields as async load stages complete. Fields are
// write-once per logical stage; merges never clear what an earlier stage set.
type SessionRecord struct {
	LayoutName    string
	SliceAxial    *int
	SliceCoronal  *int
	SliceSagittal *int
	ImageID       string
	WLConfigured  bool
}

// SessionUpdate is a partial write into a session record. Zero-valued fields
// are left untouched during a merge.
type SessionUpdate struct {
	LayoutName    string
	SliceAxial    *int
	SliceCoronal  *int
	SliceSagittal *int
	ImageID       string
	WLConfigured  bool
}

// merge applies a shallow field-union: only set fields overwrite, and
// WLConfigured flips false to true exactly once, never back.
func (r *SessionRecord) merge(update SessionUpdate) {
	if update.LayoutName != "" {
		r.LayoutName = update.LayoutName
	}
	if update.SliceAxial != nil {
		r.SliceAxial = update.SliceAxial
	}
	if update.SliceCoronal != nil {
		r.SliceCoronal = update.SliceCoronal
	}
	if update.SliceSagittal != nil {
		r.SliceSagittal = update.SliceSagittal
	}
	if update.ImageID != "" {
		r.ImageID = update.ImageID
	}
	if update.WLConfigured {
		r.WLConfigured = true
	}
}
