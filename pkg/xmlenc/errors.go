package xmlenc

import "fmt"

// IllegalEncodingError reports an explicit conflict between detection
// stages, e.g. a byte order mark disagreeing with the transport charset or
// the prolog declaration. Fatal at construction time, not retryable
// without the caller changing parameters.
type IllegalEncodingError struct {
	BOM       string // charset identified by the byte order mark, if any
	Transport string // charset from the content-type header, if any
	Declared  string // charset declared in the XML prolog, if any
}

func (e *IllegalEncodingError) Error() string {
	switch {
	case e.BOM != "" && e.Declared != "":
		return fmt.Sprintf("xmlenc: illegal encoding: BOM says %s but prolog declares %s", e.BOM, e.Declared)
	case e.BOM != "" && e.Transport != "":
		return fmt.Sprintf("xmlenc: illegal encoding: BOM says %s but content type says %s", e.BOM, e.Transport)
	default:
		return fmt.Sprintf("xmlenc: illegal encoding: transport says %s but prolog declares %s", e.Transport, e.Declared)
	}
}

// InvalidEncodingError reports an encoding name that the runtime cannot
// decode. Fatal at construction time.
type InvalidEncodingError struct {
	Encoding string
	Stage    Stage
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("xmlenc: invalid encoding %q (from %s detection)", e.Encoding, e.Stage)
}
