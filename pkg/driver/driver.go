// Package driver defines the contracts a real instrument driver
// implements, grounded on original_source's backend/drivers/*.py: each
// driver is a small commands catalog plus a formatter turning a method
// call's arguments into the exact bytes written to the wire. Spec §6
// puts any specific instrument's wire-format catalog out of scope;
// this package supplies the contracts plus two illustrative reference
// drivers so Components C/D/F/J are exercised end to end.
package driver

// Catalog maps a driver's logical command names (e.g. "OPEN", "SET")
// to the literal command-string templates those names send, mirroring
// the `commands = {...}` dict every original_source driver declares.
type Catalog interface {
	// Lookup returns the template registered for name, and whether it
	// exists.
	Lookup(name string) (template string, ok bool)
}

// MapCatalog is the straightforward Catalog implementation: a plain
// name-to-template map, exactly the shape original_source's `commands`
// class attribute has.
type MapCatalog map[string]string

// Lookup implements Catalog.
func (c MapCatalog) Lookup(name string) (string, bool) {
	t, ok := c[name]
	return t, ok
}

var _ Catalog = MapCatalog(nil)

// Formatter turns a logical command name plus arguments into the exact
// bytes written to the device, mirroring a driver's cmd_string method.
type Formatter interface {
	Format(name string, args map[string]string) ([]byte, error)
}
