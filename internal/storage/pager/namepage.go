package pager

// NamePage is a RecordPage specialized to hold the name index: the
// interned-string dictionary mapping a NameKey/URIKey (as used in
// Record.NameKey/URIKey) back to the element, attribute, or namespace name
// it represents. One name is interned once per resource and referenced by
// key from every element/attribute record thereafter.
type NamePage struct {
	*RecordPage
}

// WrapNamePage wraps an existing name-index page buffer.
func WrapNamePage(buf []byte) *NamePage {
	return &NamePage{RecordPage: WrapRecordPage(buf)}
}

// InitNamePage creates a new, empty name-index page.
func InitNamePage(buf []byte, id PageID) *NamePage {
	return &NamePage{RecordPage: InitRecordPage(buf, PageTypeNameIndex, id)}
}

// Name decodes the interned name string stored at slot i, or ("", false) if
// the slot is a tombstone.
func (np *NamePage) Name(i int) (string, bool) {
	data := np.GetRecord(i)
	if data == nil {
		return "", false
	}
	return string(data), true
}
