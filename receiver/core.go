// Package receiver implements the spec's ReceiverCore (§3): the server-side
// half of a contract, which resolves an incoming envelope.Request against a
// concrete Go value's methods and applies it.
//
// Method-table construction is adapted from the teacher's server.service:
// reflect.TypeOf(rcvr).Method(i) is scanned once at registration time and
// the reflect.Method/argument types are cached, rather than re-resolved on
// every call. The required shape is generalized from the teacher's
// func(args *A, reply *R) error to the spec's asynchronous contract:
//
//	func(ctx context.Context, args...) future.Awaiter
//
// where the return value is (almost always) a *future.Completion[T] for
// some T. future.Awaiter is the type-erasure escape hatch that lets this
// package await the completion without ever knowing T.
package receiver

import (
	"context"
	"reflect"

	"switchboard/ambient"
	"switchboard/codec"
	"switchboard/envelope"
	"switchboard/future"
	"switchboard/interceptor"
	"switchboard/rpcerr"
)

var (
	ctxType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	awaiterType = reflect.TypeOf((*future.Awaiter)(nil)).Elem()
)

// methodType caches the reflection metadata needed to invoke one method.
type methodType struct {
	method     reflect.Method
	paramTypes []reflect.Type // argument types, excluding receiver and ctx
}

// Core is the concrete implementation of a single service contract: a
// user-supplied receiver value plus its resolved method table.
type Core struct {
	serviceType string
	rcvr        reflect.Value
	methods     map[string]*methodType
	allNames    map[string]struct{} // every exported method name, conforming or not
	ambientP    ambient.Provider
	codec       codec.Codec
	chain       interceptor.HandlerFunc
}

// New builds a Core around rcvr, resolving every exported method that
// matches the asynchronous contract shape. rcvr must be a pointer to a
// struct, same requirement as the teacher's NewService. Methods that don't
// match the shape are skipped, not rejected — ContractError is raised later,
// at Apply time, only for the specific method/arity a caller actually
// requests, per the resolved Open Question on where contract validation
// belongs.
func New(serviceType string, rcvr any, provider ambient.Provider, c2 codec.Codec, chain interceptor.Interceptor) (*Core, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, rpcerr.Contractf("receiver for %q must be a pointer to a struct, got %v", serviceType, typ)
	}

	c := &Core{
		serviceType: serviceType,
		rcvr:        reflect.ValueOf(rcvr),
		methods:     make(map[string]*methodType),
		allNames:    make(map[string]struct{}),
		ambientP:    provider,
		codec:       c2,
	}

	for i := 0; i < typ.NumMethod(); i++ {
		m := typ.Method(i)
		c.allNames[m.Name] = struct{}{}
		if !methodMatchesContract(m) {
			continue
		}
		c.methods[m.Name] = &methodType{
			method:     m,
			paramTypes: paramTypesOf(m),
		}
	}

	handler := interceptor.HandlerFunc(c.apply)
	if chain != nil {
		handler = chain(handler)
	}
	c.chain = handler
	return c, nil
}

// methodMatchesContract reports whether m has shape
// func(receiver, context.Context, ...any) future.Awaiter.
func methodMatchesContract(m reflect.Method) bool {
	t := m.Type
	if t.NumIn() < 2 { // receiver + ctx, at minimum
		return false
	}
	if t.In(1) != ctxType {
		return false
	}
	if t.NumOut() != 1 {
		return false
	}
	return t.Out(0).Implements(awaiterType)
}

func paramTypesOf(m reflect.Method) []reflect.Type {
	t := m.Type
	params := make([]reflect.Type, 0, t.NumIn()-2)
	for i := 2; i < t.NumIn(); i++ {
		params = append(params, t.In(i))
	}
	return params
}

// Methods returns the names of every method resolved into this core's
// table, primarily for diagnostics and tests.
func (c *Core) Methods() []string {
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	return names
}

// Apply resolves req against this core's method table and runs it through
// the configured interceptor chain, if any.
func (c *Core) Apply(ctx context.Context, req *envelope.Request) *envelope.Response {
	return c.chain(ctx, req)
}

// apply is the innermost handler: the actual resolve-decode-invoke-await
// pipeline, wrapped by whatever interceptors the hub configured.
func (c *Core) apply(ctx context.Context, req *envelope.Request) *envelope.Response {
	mt, ok := c.methods[req.MethodName]
	if !ok {
		if _, exists := c.allNames[req.MethodName]; exists {
			// The name resolves to a real method on the receiver, just one
			// that doesn't return an async completion — ContractError per
			// spec §8's acceptance criteria, not a resolution failure.
			return envelope.Fail(req, rpcerr.Contractf(
				"method %q.%q does not return an asynchronous completion", c.serviceType, req.MethodName))
		}
		return envelope.Fail(req, rpcerr.Resolutionf(
			"service %q has no method %q", c.serviceType, req.MethodName))
	}
	if len(mt.paramTypes) != len(req.ArgumentTypes) {
		return envelope.Fail(req, rpcerr.Resolutionf(
			"method %q.%q expects %d arguments, request supplied %d",
			c.serviceType, req.MethodName, len(mt.paramTypes), len(req.ArgumentTypes)))
	}

	args, err := c.resolveArguments(req, mt)
	if err != nil {
		return envelope.Fail(req, err)
	}

	// Install the request's ambient context onto ctx itself rather than a
	// shared Provider: apply runs concurrently for many in-flight requests
	// (executor-submitted handler tasks), and a single mutable Provider slot
	// can't scope a value to one of them. Provider.Get() is consulted only
	// as a default when the request carried no ambient context of its own.
	ac := ambient.Context(req.Context)
	if ac == nil && c.ambientP != nil {
		ac = c.ambientP.Get()
	}
	if ac != nil {
		ctx = ambient.NewContext(ctx, ac)
	}

	in := make([]reflect.Value, 0, len(args)+2)
	in = append(in, c.rcvr, reflect.ValueOf(ctx))
	in = append(in, args...)

	results := mt.method.Func.Call(in)
	awaiter := results[0].Interface().(future.Awaiter)

	result, err := awaiter.AwaitAny()
	if err != nil {
		return envelope.Fail(req, err)
	}
	return envelope.Ok(req, result)
}

// resolveArguments builds the reflect.Values to pass to the method,
// decoding RawArguments against each parameter's real type when the request
// arrived over a wire transport, or using the live Arguments directly on
// the in-process path.
func (c *Core) resolveArguments(req *envelope.Request, mt *methodType) ([]reflect.Value, error) {
	out := make([]reflect.Value, len(mt.paramTypes))

	if req.Arguments != nil {
		for i, pt := range mt.paramTypes {
			v := reflect.ValueOf(req.Arguments[i])
			if !v.IsValid() {
				v = reflect.Zero(pt)
			}
			if !v.Type().AssignableTo(pt) {
				return nil, rpcerr.Resolutionf(
					"argument %d of %q.%q: got %s, expected %s",
					i, c.serviceType, req.MethodName, v.Type(), pt)
			}
			out[i] = v
		}
		return out, nil
	}

	for i, raw := range req.RawArguments {
		v, err := c.codec.Decode(mt.paramTypes[i], raw)
		if err != nil {
			return nil, rpcerr.Serializationf(err, "decoding argument %d of %q.%q",
				i, c.serviceType, req.MethodName)
		}
		out[i] = reflect.ValueOf(v)
	}
	return out, nil
}
