// Package pagejs holds the element scripts shared by the browser adapters.
// Each is a plain function called with the element as this, and each returns
// a JSON value.
package pagejs

const (
	Dispatch = `function (ev) {
	const opts = {
		bubbles: true, cancelable: true, composed: true,
		ctrlKey: !!ev.ctrlKey, altKey: !!ev.altKey, shiftKey: !!ev.shiftKey, metaKey: !!ev.metaKey,
	};
	let e;
	switch (ev.type) {
	case 'mousedown': case 'mouseup': case 'click': case 'dblclick': case 'contextmenu':
		e = new MouseEvent(ev.type, Object.assign(opts, {
			button: ev.button || 0, detail: ev.detail || 0,
			clientX: ev.clientX || 0, clientY: ev.clientY || 0, view: window,
		}));
		break;
	case 'keydown': case 'keyup': case 'keypress':
		e = new KeyboardEvent(ev.type, Object.assign(opts, { key: ev.key || '' }));
		break;
	case 'beforeinput': case 'input':
		e = new InputEvent(ev.type, Object.assign(opts, { inputType: ev.inputType || '', data: ev.data ?? null }));
		break;
	case 'focus': case 'blur':
		e = new FocusEvent(ev.type, { bubbles: false });
		break;
	default:
		e = new Event(ev.type, { bubbles: true, cancelable: true });
	}
	this.dispatchEvent(e);
	return true;
}`

	Rect = `function () {
	const r = this.getBoundingClientRect();
	return { x: r.x, y: r.y, width: r.width, height: r.height };
}`

	Scrollable = `function () {
	const s = getComputedStyle(this);
	const y = (s.overflowY === 'auto' || s.overflowY === 'scroll') && this.scrollHeight > this.clientHeight;
	const x = (s.overflowX === 'auto' || s.overflowX === 'scroll') && this.scrollWidth > this.clientWidth;
	return x || y;
}`

	EditKind = `function () {
	if (this.isContentEditable) return 2;
	if (this.tagName === 'TEXTAREA' || this.tagName === 'SELECT') return 1;
	if (this.tagName === 'INPUT') {
		const t = (this.getAttribute('type') || 'text').toLowerCase();
		return ['button', 'submit', 'reset', 'image', 'file'].includes(t) ? 0 : 1;
	}
	return 0;
}`

	Value = `function () {
	return this.isContentEditable ? this.innerText : String(this.value ?? '');
}`

	// Setting through the prototype setter keeps framework value trackers
	// in sync.
	SetValue = `function (v) {
	if (this.isContentEditable) { this.textContent = v; return true; }
	if (!('value' in this) || this.tagName === 'BUTTON') return false;
	const d = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(this), 'value');
	if (d && d.set) d.set.call(this, v); else this.value = v;
	return true;
}`

	InsertText = `function (t) {
	if (!this.isContentEditable) return false;
	if (document.activeElement !== this) this.focus();
	if (!document.execCommand('insertText', false, t)) this.append(document.createTextNode(t));
	return true;
}`

	ScrollBy = `function (dx, dy) { this.scrollBy(dx, dy); return true; }`
)
