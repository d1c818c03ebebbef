/*
Package backend implements collections of entities with auto-generated, nested REST routes.

# Entities

An entity is a set of attributes with change tracking. Set() shadows the committed value
until the entity is saved successfully, Reset() discards all pending changes. The unique key
of an entity, "id" by default, tells whether it was ever persisted.

# Collections

A collection is an ordered set of entities with at most one entity per unique key. When a
collection is created, it runs its plugins: the first binds the persistence adapter, the second
binds the routes. Extend() derives a new collection with a merged configuration, the
derived collection runs the plugins again. A derived collection which keeps the mount point of
its parent shares the routes of the parent.

# Configuration

Collections are either created in code with Backend.Collection(), or declaratively in JSON or YAML:

	{
	  "collections": [
	    {
	      "resource": "post"
	    },
	    {
	      "resource": "post/comment",
	      "relation": "post_id",
	      "operations": "CRD",
	      "required": ["text"]
	    }
	  ]
	}

This configuration creates the following REST routes:

	GET /posts
	HEAD /posts
	POST /posts
	GET /posts/{id_<uid>}
	HEAD /posts/{id_<uid>}
	PUT /posts/{id_<uid>}
	DELETE /posts/{id_<uid>}
	GET /posts/{id_<uid>}/comments
	HEAD /posts/{id_<uid>}/comments
	POST /posts/{id_<uid>}/comments
	GET /posts/{id_<uid>}/comments/{id_<uid>}
	HEAD /posts/{id_<uid>}/comments/{id_<uid>}
	DELETE /posts/{id_<uid>}/comments/{id_<uid>}

The route parameters carry the uid of their collection, so two levels with the same unique key never
share a parameter. With a relation, the comments routes only see the comments of the selected post,
and a comment created with POST gets the post_id of the selected post.

# Query Parameters and Pagination

The list routes accept these query parameters:

	filter=field=value  entities whose field equals value, numbers and strings compare loosely
	filter=field~value  entities whose field contains value
	where=expression    an expr expression over the attributes, like "likes > 3 && draft == false"
	sort=field          sort ascending by field
	order=asc|desc      the order of the result
	limit=n             page size between 1 and 100
	page=n              page number, starting at 1

The response always carries the header Pagination-Total-Count. With limit or page, it also carries
Pagination-Limit, Pagination-Page-Count and Pagination-Current-Page. Unknown parameters are rejected
with 400 Bad Request.

# Notifications

Successful creates, updates and destroys are published to the Notifier of the backend, and to handlers
installed with RequestNotifications(). Both run on the notification workers, never on the request.
*/
package backend
