package catalog

// introspectionQuery is the single composite catalog query.
// It returns exactly one row with one jsonb column holding the whole
// document, so introspection is one round trip regardless of how many
// namespaces/relations/callables exist: nested jsonb_agg/jsonb_build_object
// aggregates assemble the full document server-side, which scales better
// once constraints/callables/types all need to ride along in the same query.
const introspectionQuery = `
WITH schemas AS (
  SELECT n.oid, n.nspname,
         pg_catalog.pg_get_userbyid(n.nspowner) AS owner,
         COALESCE(n.nspacl::text[], ARRAY[]::text[]) AS acl
  FROM pg_catalog.pg_namespace n
  WHERE n.nspname = ANY($1::text[])
),
rels AS (
  SELECT c.oid, c.relname, c.relnamespace, c.relkind, c.relispartition,
         pg_catalog.obj_description(c.oid, 'pg_class') AS comment,
         pg_catalog.has_table_privilege(c.oid, 'SELECT') AS can_select,
         pg_catalog.has_table_privilege(c.oid, 'INSERT') AS can_insert,
         pg_catalog.has_table_privilege(c.oid, 'UPDATE') AS can_update,
         pg_catalog.has_table_privilege(c.oid, 'DELETE') AS can_delete
  FROM pg_catalog.pg_class c
  JOIN schemas s ON s.oid = c.relnamespace
  WHERE c.relkind IN ('r','v','m','f','p')
),
attrs AS (
  SELECT a.attrelid, a.attnum, a.attname, a.atttypid, a.attnotnull,
         a.attidentity <> '' AS is_identity,
         a.attgenerated <> '' AS is_generated,
         (ad.adbin IS NOT NULL) AS has_default
  FROM pg_catalog.pg_attribute a
  JOIN rels r ON r.oid = a.attrelid
  LEFT JOIN pg_catalog.pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
  WHERE a.attnum > 0 AND NOT a.attisdropped
),
cons AS (
  SELECT co.oid, co.conrelid, co.conname, co.contype, co.condeferrable,
         co.conkey, co.confkey, co.confrelid
  FROM pg_catalog.pg_constraint co
  JOIN rels r ON r.oid = co.conrelid
),
procs AS (
  SELECT p.oid, p.proname, p.pronamespace, p.prokind, p.provolatile,
         p.proisstrict, p.prosecdef, p.prorettype, p.proretset,
         p.proargnames, p.proargmodes, p.proallargtypes, p.proargtypes,
         p.pronargdefaults,
         pg_catalog.has_function_privilege(p.oid, 'EXECUTE') AS can_execute
  FROM pg_catalog.pg_proc p
  JOIN schemas s ON s.oid = p.pronamespace
  WHERE p.prokind IN ('f','p','a','w')
),
types AS (
  SELECT t.oid, t.typname, t.typtype, t.typelem, t.typbasetype, t.typrelid
  FROM pg_catalog.pg_type t
  WHERE t.oid IN (SELECT atttypid FROM attrs)
     OR t.oid IN (SELECT unnest(proallargtypes) FROM procs WHERE proallargtypes IS NOT NULL)
     OR t.oid IN (SELECT unnest(proargtypes::oid[]) FROM procs)
     OR t.oid IN (SELECT prorettype FROM procs)
)
SELECT jsonb_build_object(
  'namespaces', (SELECT COALESCE(jsonb_agg(jsonb_build_object(
      'name', nspname, 'owner', owner, 'acl', acl)), '[]'::jsonb) FROM schemas),
  'relations', (SELECT COALESCE(jsonb_agg(jsonb_build_object(
      'oid', r.oid, 'namespace', s.nspname, 'name', r.relname,
      'kind', r.relkind, 'is_partition', r.relispartition,
      'comment', r.comment,
      'privileges', jsonb_build_object(
          'select', r.can_select, 'insert', r.can_insert,
          'update', r.can_update, 'delete', r.can_delete),
      'attributes', (SELECT COALESCE(jsonb_agg(jsonb_build_object(
          'ordinal', a.attnum, 'name', a.attname, 'type_oid', a.atttypid,
          'not_null', a.attnotnull, 'has_default', a.has_default,
          'generated', a.is_generated, 'identity', a.is_identity
        ) ORDER BY a.attnum), '[]'::jsonb) FROM attrs a WHERE a.attrelid = r.oid),
      'constraints', (SELECT COALESCE(jsonb_agg(jsonb_build_object(
          'name', c.conname, 'type', c.contype, 'deferrable', c.condeferrable,
          'keys', c.conkey, 'ref_relid', c.confrelid, 'ref_keys', c.confkey
        ) ORDER BY c.oid), '[]'::jsonb) FROM cons c WHERE c.conrelid = r.oid)
    )), '[]'::jsonb) FROM rels r JOIN schemas s ON s.oid = r.relnamespace),
  'callables', (SELECT COALESCE(jsonb_agg(jsonb_build_object(
      'oid', p.oid, 'namespace', s.nspname, 'name', p.proname, 'kind', p.prokind,
      'volatility', p.provolatile, 'strict', p.proisstrict, 'security_definer', p.prosecdef,
      'return_type_oid', p.prorettype, 'returns_set', p.proretset,
      'arg_names', p.proargnames, 'arg_modes', p.proargmodes,
      'all_arg_types', p.proallargtypes, 'arg_types', p.proargtypes::oid[],
      'num_default_args', p.pronargdefaults,
      'privileges', jsonb_build_object('execute', p.can_execute)
    )), '[]'::jsonb) FROM procs p JOIN schemas s ON s.oid = p.pronamespace),
  'types', (SELECT COALESCE(jsonb_agg(jsonb_build_object(
      'oid', t.oid, 'name', t.typname, 'kind', t.typtype,
      'elem_oid', t.typelem, 'base_oid', t.typbasetype, 'rel_oid', t.typrelid,
      'enum_labels', (SELECT COALESCE(jsonb_agg(e.enumlabel ORDER BY e.enumsortorder), '[]'::jsonb)
                       FROM pg_catalog.pg_enum e WHERE e.enumtypid = t.oid),
      'composite_fields', (SELECT COALESCE(jsonb_agg(jsonb_build_object(
          'name', a.attname, 'type_oid', a.atttypid) ORDER BY a.attnum), '[]'::jsonb)
        FROM pg_catalog.pg_attribute a
        WHERE a.attrelid = t.typrelid AND a.attnum > 0 AND NOT a.attisdropped)
    )), '[]'::jsonb) FROM types t)
) AS document
`
