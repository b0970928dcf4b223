// Package iam implements the request authorization pipeline and the auth
// context service.
//
// Per request the stages run strictly in order, each returning a new
// auth.RequestAuthState:
//
//	ProviderDispatcher -> TokenVerifier -> IdentityResolver -> ImpersonationMediator -> PermissionResolver
//
// Any stage failure aborts the request. Nothing is retried.
//
// AuthContextService runs out of band behind two endpoints and is the only
// writer of persisted identity claims.
package iam
