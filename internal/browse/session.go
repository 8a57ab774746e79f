package browse

// Session is an ordered set of images with a cursor, the model behind the
// Previous/Next browsing of a selection.
type Session struct {
	paths []string
	index int
}

func NewSession() *Session {
	return &Session{}
}

// Load replaces the selection and moves the cursor to the first image.
func (s *Session) Load(paths []string) {
	s.paths = append([]string(nil), paths...)
	s.index = 0
}

func (s *Session) Len() int {
	return len(s.paths)
}

func (s *Session) Index() int {
	return s.index
}

func (s *Session) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Current returns the image under the cursor, or false when nothing is loaded.
func (s *Session) Current() (string, bool) {
	if len(s.paths) == 0 {
		return "", false
	}
	return s.paths[s.index], true
}

// Next advances the cursor. It stays on the last image and reports false there.
func (s *Session) Next() (string, bool) {
	if s.index >= len(s.paths)-1 {
		return "", false
	}
	s.index++
	return s.paths[s.index], true
}

// Previous moves the cursor back. It stays on the first image and reports false there.
func (s *Session) Previous() (string, bool) {
	if len(s.paths) == 0 || s.index == 0 {
		return "", false
	}
	s.index--
	return s.paths[s.index], true
}
