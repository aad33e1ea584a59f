// Package adalite is a small Ada-flavoured front-end that drives the engine
// end to end: packages and package bodies, subprograms with parameters,
// separate subunits, object declarations and calls.
//
// Units follow GNAT file naming: foo.ads holds the specification of Foo,
// foo.adb its body and foo-bar.adb the child or subunit Foo.Bar.
package adalite
