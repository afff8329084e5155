package object

// Module is the payload of a loaded module: a name plus its namespace dict.
type Module struct {
	name     string
	filename string
	dict     *Object // dict object holding the module namespace
}

func (m *Module) PayloadKind() string { return "module" }

// Name returns the module's dotted name.
func (m *Module) Name() string { return m.name }

// Filename returns the source filename recorded for the module, if any.
func (m *Module) Filename() string { return m.filename }

// DictObj returns the namespace dict object as a borrowed reference.
func (m *Module) DictObj() *Object { return m.dict }

// Dict returns the namespace dict payload.
func (m *Module) Dict() *Dict {
	d, _ := PayloadOf[*Dict](m.dict)
	return d
}

// Traverse visits the namespace for the cycle collector.
func (m *Module) Traverse(visit func(*Object)) {
	if m.dict != nil {
		visit(m.dict)
	}
}

// Finalize releases the namespace.
func (m *Module) Finalize() error {
	if m.dict != nil {
		m.dict.Decref()
		m.dict = nil
	}
	return nil
}
