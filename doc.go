// Package factory builds and configures object graphs from data-only descriptions.
//
// It offers:
// - object descriptions as ordered Maps with __class, __construct() and directive keys
// - Description values that mark nested descriptions to be built first
// - directive dispatch: "name()" method calls, SetName setters, field assignment,
//   FieldSetter dynamic fields, and the "()" final callback
// - replacement of the tracked object by methods returning a new instance of its type
// - Resolve for arguments that are either live objects or buildable descriptions
// - YAML / JSON loading and CBOR / JSON serialization of descriptions
//
// Types are instantiated by a Container; package container provides a registry
// based one.
package factory
