package srv

// Headers represents the transport metadata carried alongside a request.
type Headers map[string]string

func (h Headers) cloneWithExtra(extra int) Headers {
	size := len(h) + extra
	if size <= 0 {
		return Headers{}
	}

	cloned := make(Headers, size)
	for k, v := range h {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the headers map.
func (h Headers) Clone() Headers {
	return h.cloneWithExtra(0)
}

// With returns a cloned headers map containing the provided key/value pair.
func (h Headers) With(key, value string) Headers {
	cloned := h.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned headers map containing the supplied entries.
func (h Headers) WithAll(entries Headers) Headers {
	cloned := h.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// Get returns the value for key, or the empty string when absent.
func (h Headers) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[key]
}

// NewHeaders constructs a Headers map from alternating key/value pairs.
func NewHeaders(pairs ...string) Headers {
	hd := make(Headers, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		hd[pairs[i]] = pairs[i+1]
	}
	return hd
}
