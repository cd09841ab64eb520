// Package language holds the registry of supported languages.
//
// A Language pairs a validator with the runtime profile every sandbox
// backend needs: default entry file, source extensions, container image,
// remote service name and version, and the compile and run commands.
// Adding a language means registering one more entry; request dispatch
// never switches on language names.
package language
